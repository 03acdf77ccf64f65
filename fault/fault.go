// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

// GenericError - error base
type GenericError string

// to allow for different classes of errors
type ExistsError GenericError
type InvalidError GenericError
type NotFoundError GenericError
type ProcessError GenericError

// common errors - keep in alphabetic order
var (
	AlreadyInitialised     = ExistsError("already initialised")
	BlockNotFound          = NotFoundError("block not found")
	CacheDirectoryRequired = InvalidError("cache directory is required")
	ConnectionFailed       = ProcessError("connection failed")
	CorruptRecord          = InvalidError("corrupt record")
	DecryptFailed          = ProcessError("decrypt failed")
	EncryptFailed          = ProcessError("encrypt failed")
	FileNotFound           = NotFoundError("file not found")
	FrameTooLarge          = InvalidError("frame too large")
	InvalidBase58Checksum  = InvalidError("invalid base58 checksum")
	InvalidBlockCount      = InvalidError("invalid max blocks per file")
	InvalidCount           = InvalidError("invalid count")
	InvalidDnsTxtRecord    = InvalidError("invalid dns txt record")
	InvalidFieldCount      = InvalidError("invalid packet field count")
	InvalidIV              = InvalidError("invalid initialisation vector")
	InvalidIpAddress       = InvalidError("invalid ip address")
	InvalidKeyLength       = InvalidError("invalid key length")
	InvalidNodeDomain      = InvalidError("invalid node domain")
	InvalidPacket          = InvalidError("invalid packet")
	InvalidPacketOrder     = InvalidError("invalid packet order")
	InvalidPeerResponse    = InvalidError("invalid peer response")
	InvalidPortNumber      = InvalidError("invalid port number")
	InvalidPrivateKey      = InvalidError("invalid private key")
	InvalidPublicKey       = InvalidError("invalid public key")
	InvalidSignature       = InvalidError("invalid signature")
	InvalidStructPointer   = InvalidError("invalid struct pointer")
	InvalidUniqueID        = InvalidError("invalid unique id")
	MissingParameters      = InvalidError("missing parameters")
	PeerAlreadyExists      = ExistsError("peer already exists")
	PeerNotFound           = NotFoundError("peer not found")
	ShardNotFound          = NotFoundError("shard not found")
	SignFailed             = ProcessError("sign failed")
	TransactionNotFound    = NotFoundError("transaction not found")
	VotesInsufficient      = ProcessError("insufficient votes")
	VotesWithEmptyWinner   = NotFoundError("votes with empty winner")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e ExistsError) Error() string   { return string(e) }
func (e InvalidError) Error() string  { return string(e) }
func (e NotFoundError) Error() string { return string(e) }
func (e ProcessError) Error() string  { return string(e) }

// IsErrExists - determine the class of an error
func IsErrExists(e error) bool { _, ok := e.(ExistsError); return ok }

// IsErrInvalid - determine the class of an error
func IsErrInvalid(e error) bool { _, ok := e.(InvalidError); return ok }

// IsErrNotFound - determine the class of an error
func IsErrNotFound(e error) bool { _, ok := e.(NotFoundError); return ok }

// IsErrProcess - determine the class of an error
func IsErrProcess(e error) bool { _, ok := e.(ProcessError); return ok }
