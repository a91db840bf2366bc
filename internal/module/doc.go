// Package module is the API an eGeoffrey module is written against.
//
// A module implements Handler (embedding Base for the callbacks it does not
// need), registers its listeners from OnInit and is driven by Run:
//
//	m, err := module.New(opts, &myHandler{})
//	...
//	err = m.Run(ctx) // blocks until ctx is cancelled
//
// Run connects to the gateway, subscribes to every request addressed to the
// module and announces it with a STATUS broadcast. OnStart runs once every
// configuration registered with waitForIt has been received, or immediately
// when there is none. Requests are only delivered to OnMessage once the
// module is configured; PINGs are always answered.
package module
