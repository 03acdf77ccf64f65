// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/blocksync/fault"
)

var (
	errExistsOne   = fault.ExistsError("exists one ")
	errExistsTwo   = fault.ExistsError("exists two")
	errInvalidOne  = fault.InvalidError("invalid one")
	errInvalidTwo  = fault.InvalidError("invalid two")
	errNotFoundOne = fault.NotFoundError("not found one")
	errNotFoundTwo = fault.NotFoundError("not found two")
	errProcessOne  = fault.ProcessError("process one")
	errProcessTwo  = fault.ProcessError("process two")
)

// test that various errors can be subclassed
func TestClasses(t *testing.T) {
	errorList := []struct {
		err      error
		exists   bool
		invalid  bool
		notFound bool
		process  bool
	}{
		{errExistsOne, true, false, false, false},
		{errExistsTwo, true, false, false, false},
		{errInvalidOne, false, true, false, false},
		{errInvalidTwo, false, true, false, false},
		{errNotFoundOne, false, false, true, false},
		{errNotFoundTwo, false, false, true, false},
		{errProcessOne, false, false, false, true},
		{errProcessTwo, false, false, false, true},
		{fault.InvalidPeerResponse, false, true, false, false},
		{fault.BlockNotFound, false, false, true, false},
		{fault.ConnectionFailed, false, false, false, true},
	}

	for i, e := range errorList {
		assert.Equal(t, e.exists, fault.IsErrExists(e.err), "%d: exists for: %v", i, e.err)
		assert.Equal(t, e.invalid, fault.IsErrInvalid(e.err), "%d: invalid for: %v", i, e.err)
		assert.Equal(t, e.notFound, fault.IsErrNotFound(e.err), "%d: not found for: %v", i, e.err)
		assert.Equal(t, e.process, fault.IsErrProcess(e.err), "%d: process for: %v", i, e.err)
	}
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "invalid signature", fault.InvalidSignature.Error(), "wrong text")
	assert.Equal(t, "x", fault.GenericError("x").Error(), "wrong text")
}
