// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides typed access to tensors owned by an inference
// runtime.
//
// # Overview
//
// A tensor's capabilities are encoded in its Go type:
//
//	            Host()  HostMut()  Fill  CopyFrom  CopyTo  Close
//	HostTensor    x        x        x                       x
//	HostView      x
//	HostViewMut   x        x        x
//	DeviceTensor                    x      x         x      x
//	DeviceView                                       x
//	DeviceViewMut                   x      x         x
//
// Owned tensors (HostTensor, DeviceTensor) free their native handle on
// Close. Views borrow a tensor owned by someone else, usually a session,
// and are only valid while that owner is alive.
//
// # Basic Usage
//
//	rt := reference.New()
//	host, err := tensor.NewHost[float32](rt, tensor.Shape{1, 3, 2, 2}, tensor.NCHW)
//	if err != nil {
//	    return err
//	}
//	defer host.Close()
//
//	if err := host.Fill(1); err != nil {
//	    return err
//	}
//	data, err := host.Host() // a copy
//
// # Borrowing
//
// Borrow and BorrowMut wrap caller memory in a host tensor for the
// duration of a callback. The slice length must match the shape.
//
//	err := tensor.Borrow(rt, tensor.Shape{1, 3}, tensor.NCHW, pixels,
//	    func(v tensor.HostView[float32]) error {
//	        return input.CopyFromHostTensor(v)
//	    })
package tensor
