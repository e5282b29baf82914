// Package boundary composes marshalers into host functions a wasm guest can
// call.
//
// A Func declares its slots with Arg and Ret and converts them inside Body
// with Param and Result. The Module turns each Func into a wazero host
// function, resolving the guest memory and allocator per call and opening a
// borrow scope that ends with the call.
//
//	m := boundary.New(boundary.DefaultOptions())
//	m.Func(&boundary.Func{
//	    Name:        "matches",
//	    Params:      []boundary.Slot{boundary.Arg("shared", marshal.ArcRef[Counter]{}), boundary.Arg("n", marshal.Copy[int32]{})},
//	    Results:     []boundary.Slot{boundary.Ret("ok", marshal.Bool{})},
//	    ErrCallback: true,
//	    Body: func(c *boundary.Call) error {
//	        shared, err := boundary.Param(c, marshal.ArcRef[Counter]{})
//	        if err != nil {
//	            return err
//	        }
//	        n, err := boundary.Param(c, marshal.Copy[int32]{})
//	        if err != nil {
//	            return err
//	        }
//	        return boundary.Result(c, marshal.Bool{}, shared.Get().N == int(n))
//	    },
//	})
//	mod, err := m.Instantiate(ctx, runtime)
//
// # Failures
//
// Errors and panics never cross into the guest. When a Func has
// ErrCallback set, its last parameter selects a callback from Callbacks;
// ThrowError writes the error text into guest memory, calls the callback,
// frees the text and the function returns its Fallback. Without a callback
// the error is logged at debug level and dropped. Results already written
// by a failing call are released first, so a failed call never transfers
// ownership.
package boundary
