// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cryptostream

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/bitmark-inc/blocksync/fault"
)

func newCipher(key []byte, iv []byte) (cipher.Block, error) {
	block, err := aes.NewCipher(key)
	if nil != err {
		return nil, fault.InvalidKeyLength
	}
	if aes.BlockSize != len(iv) {
		return nil, fault.InvalidIV
	}
	return block, nil
}

// EncryptRaw - stateless encrypt with an explicit key and iv
func EncryptRaw(data []byte, key []byte, iv []byte) []byte {
	block, err := newCipher(key, iv)
	if nil != err {
		return nil
	}
	return encrypt(block, iv, data)
}

// DecryptRaw - stateless decrypt with an explicit key and iv
//
// used as the fallback when a peer's session stream cannot decrypt,
// like Decrypt it can accept a wrong key
func DecryptRaw(data []byte, key []byte, iv []byte) ([]byte, bool) {
	block, err := newCipher(key, iv)
	if nil != err {
		return nil, false
	}
	return decrypt(block, iv, data)
}

// pad value equals pad length, aligned input gains a full block
func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i += 1 {
		padded[i] = byte(n)
	}
	return padded
}

func unpad(data []byte) ([]byte, bool) {
	if 0 == len(data) {
		return nil, false
	}
	n := int(data[len(data)-1])
	if 0 == n || n > aes.BlockSize || n > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}

func encrypt(block cipher.Block, iv []byte, data []byte) []byte {
	padded := pad(data)
	out := make([]byte, len(padded))
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(out, padded)
	return out
}

func decrypt(block cipher.Block, iv []byte, data []byte) ([]byte, bool) {
	if 0 == len(data) || 0 != len(data)%aes.BlockSize {
		return nil, false
	}
	out := make([]byte, len(data))
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(out, data)

	result, ok := unpad(out)
	if !ok || 0 == len(result) {
		return nil, false
	}
	return result, true
}
