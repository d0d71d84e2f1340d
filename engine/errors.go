// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package engine

import (
	"github.com/born-ml/mnn/internal/mnnerr"
	"github.com/born-ml/mnn/internal/native"
)

// Error is the error type returned by every package in this module.
type Error = mnnerr.Error

// Kind classifies an Error.
type Kind = mnnerr.Kind

// PanicError is the payload of a panic recovered inside an actor.
type PanicError = mnnerr.PanicError

// ErrorCode is a native status code.
type ErrorCode = native.ErrorCode

// Sentinels for errors.Is. Each matches any Error of the same kind.
var (
	ErrInternal         = mnnerr.ErrInternal
	ErrSizeMismatch     = mnnerr.ErrSizeMismatch
	ErrTensorCopyFailed = mnnerr.ErrTensorCopyFailed
	ErrIO               = mnnerr.ErrIO
	ErrInterpreter      = mnnerr.ErrInterpreter
	ErrASCII            = mnnerr.ErrASCII
	ErrTypeMismatch     = mnnerr.ErrTypeMismatch
	ErrParse            = mnnerr.ErrParse
	ErrSync             = mnnerr.ErrSync
	ErrTensor           = mnnerr.ErrTensor
	ErrDynamicTensor    = mnnerr.ErrDynamicTensor
)

// KindOf returns the kind of the first Error in err's chain.
func KindOf(err error) (Kind, bool) { return mnnerr.KindOf(err) }

// CodeOf returns the native status carried by err, or NoError.
func CodeOf(err error) ErrorCode { return mnnerr.CodeOf(err) }
