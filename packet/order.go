// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package packet

// SendOrder - packet type of a request
type SendOrder int

// request orders, the numeric values are on the wire
const (
	AskPeerAuthKeys SendOrder = iota
	AskPeerList
	AskNetworkInformation
	AskBlockHeightInformation
	AskBlockData
	AskBlockTransactionData
	AskBlockTransactionDataByRange
	AskKeepAlive
	AskDisconnectRequest

	sendOrderCount
)

// ResponseOrder - packet type of a response
type ResponseOrder int

// response orders, the numeric values are on the wire
const (
	SendPeerAuthKeys ResponseOrder = iota
	SendPeerList
	SendNetworkInformation
	SendBlockHeightInformation
	SendBlockData
	SendBlockTransactionData
	SendBlockTransactionDataByRange
	SendDisconnectConfirmation
	InvalidPacket
	NotYetSynced

	responseOrderCount
)

// IsValid - true for a known request order
func (o SendOrder) IsValid() bool {
	return o >= 0 && o < sendOrderCount
}

func (o SendOrder) String() string {
	switch o {
	case AskPeerAuthKeys:
		return "AskPeerAuthKeys"
	case AskPeerList:
		return "AskPeerList"
	case AskNetworkInformation:
		return "AskNetworkInformation"
	case AskBlockHeightInformation:
		return "AskBlockHeightInformation"
	case AskBlockData:
		return "AskBlockData"
	case AskBlockTransactionData:
		return "AskBlockTransactionData"
	case AskBlockTransactionDataByRange:
		return "AskBlockTransactionDataByRange"
	case AskKeepAlive:
		return "AskKeepAlive"
	case AskDisconnectRequest:
		return "AskDisconnectRequest"
	default:
		return "*unknown*"
	}
}

// IsValid - true for a known response order
func (o ResponseOrder) IsValid() bool {
	return o >= 0 && o < responseOrderCount
}

func (o ResponseOrder) String() string {
	switch o {
	case SendPeerAuthKeys:
		return "SendPeerAuthKeys"
	case SendPeerList:
		return "SendPeerList"
	case SendNetworkInformation:
		return "SendNetworkInformation"
	case SendBlockHeightInformation:
		return "SendBlockHeightInformation"
	case SendBlockData:
		return "SendBlockData"
	case SendBlockTransactionData:
		return "SendBlockTransactionData"
	case SendBlockTransactionDataByRange:
		return "SendBlockTransactionDataByRange"
	case SendDisconnectConfirmation:
		return "SendDisconnectConfirmation"
	case InvalidPacket:
		return "InvalidPacket"
	case NotYetSynced:
		return "NotYetSynced"
	default:
		return "*unknown*"
	}
}
