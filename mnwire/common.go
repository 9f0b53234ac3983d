// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnwire

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	// MaxSignatureSize is the maximum size of a DER encoded signature
	// including the sighash-type style trailing byte some implementations
	// append.
	MaxSignatureSize = 73

	// MaxPubKeySize is the maximum size of a serialized public key, which
	// is the uncompressed form.
	MaxPubKeySize = 65

	// maxScriptSize is the maximum size of a serialized script carried by
	// the extended announcement reward address field.
	maxScriptSize = 10000
)

// readElement reads the next sequence of bytes from r using little endian
// depending on the concrete type of element pointed to.
func readElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *int32:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return err
		}
		*e = int32(v)
		return nil

	case *int64:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return err
		}
		*e = int64(v)
		return nil

	case *uint32:
		return binary.Read(r, binary.LittleEndian, e)

	case *bool:
		var v uint8
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return err
		}
		*e = v != 0
		return nil

	case *chainhash.Hash:
		_, err := io.ReadFull(r, e[:])
		return err
	}

	return binary.Read(r, binary.LittleEndian, element)
}

// writeElement writes the little endian representation of element to w.
func writeElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case int32:
		return binary.Write(w, binary.LittleEndian, uint32(e))

	case int64:
		return binary.Write(w, binary.LittleEndian, uint64(e))

	case uint32:
		return binary.Write(w, binary.LittleEndian, e)

	case bool:
		var v uint8
		if e {
			v = 1
		}
		return binary.Write(w, binary.LittleEndian, v)

	case *chainhash.Hash:
		_, err := w.Write(e[:])
		return err
	}

	return binary.Write(w, binary.LittleEndian, element)
}

// readOutPoint reads the next sequence of bytes from r as an OutPoint.
func readOutPoint(r io.Reader, op *wire.OutPoint) error {
	if err := readElement(r, &op.Hash); err != nil {
		return err
	}
	return readElement(r, &op.Index)
}

// writeOutPoint encodes op to w.
func writeOutPoint(w io.Writer, op *wire.OutPoint) error {
	if err := writeElement(w, &op.Hash); err != nil {
		return err
	}
	return writeElement(w, op.Index)
}

// readTxIn reads the next sequence of bytes from r as a transaction input.
func readTxIn(r io.Reader, pver uint32, ti *wire.TxIn) error {
	if err := readOutPoint(r, &ti.PreviousOutPoint); err != nil {
		return err
	}
	script, err := wire.ReadVarBytes(r, pver, maxScriptSize,
		"signature script")
	if err != nil {
		return err
	}
	// Keep empty scripts nil so encode/decode round trips compare equal.
	if len(script) > 0 {
		ti.SignatureScript = script
	} else {
		ti.SignatureScript = nil
	}
	return readElement(r, &ti.Sequence)
}

// writeTxIn encodes ti to w.
func writeTxIn(w io.Writer, pver uint32, ti *wire.TxIn) error {
	if err := writeOutPoint(w, &ti.PreviousOutPoint); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, pver, ti.SignatureScript); err != nil {
		return err
	}
	return writeElement(w, ti.Sequence)
}

// NullTxIn returns a transaction input with a null previous outpoint, which
// is how a full list request is expressed on the wire.
func NullTxIn() wire.TxIn {
	return wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: math.MaxUint32},
		Sequence:         math.MaxUint32,
	}
}

// IsNullOutPoint returns whether the passed outpoint is the null outpoint, a
// zero hash with the maximum index.
func IsNullOutPoint(op *wire.OutPoint) bool {
	if op.Index != math.MaxUint32 {
		return false
	}
	var zero chainhash.Hash
	return op.Hash == zero
}
