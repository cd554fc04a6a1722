package jsworker

import (
	"fmt"

	"github.com/robertkrimen/otto"

	"github.com/scriptedge/scriptedge/internal/apperrors"
)

// Worker is one otto VM holding a single evaluated bundle. It is not
// safe for concurrent use — otto values are not goroutine-safe — so
// callers that need concurrent dispatch own a pool of Workers rather
// than sharing one (see internal/tenant's Inner.Worker).
type Worker struct {
	vm       *otto.Otto
	handlers *otto.Object
	jobs     []func()
}

// New evaluates bundleCode, a single expression producing an object of
// name → function (the shape internal/bundler produces), and returns a
// Worker ready to run any of its exported handlers.
func New(bundleCode string) (*Worker, error) {
	w := &Worker{vm: otto.New()}

	if err := w.vm.Set("__enqueueJob__", w.enqueueJob); err != nil {
		return nil, apperrors.WorkerInit("binding job queue", err)
	}
	if _, err := w.vm.Run(promiseSource); err != nil {
		return nil, apperrors.WorkerInit("installing promise polyfill", err)
	}

	result, err := w.vm.Run(bundleCode)
	if err != nil {
		return nil, apperrors.WorkerInit("evaluating bundle", err)
	}
	obj := result.Object()
	if obj == nil {
		return nil, apperrors.WorkerShape("bundle did not evaluate to an object of handlers")
	}
	if err := w.vm.Set("handlers", result); err != nil {
		return nil, apperrors.WorkerInit("binding handlers global", err)
	}
	w.handlers = obj
	return w, nil
}

func (w *Worker) enqueueJob(call otto.FunctionCall) otto.Value {
	fn := call.Argument(0)
	w.jobs = append(w.jobs, func() {
		if _, err := fn.Call(otto.UndefinedValue()); err != nil {
			// A callback throwing is a script bug surfacing during
			// settlement draining; there is no caller left to hand
			// the error to, so it is dropped. The enclosing promise
			// chain already observed the throw via its own try/catch.
			_ = err
		}
	})
	return otto.UndefinedValue()
}

// Run looks up name in the bundle's handler object, calls it with req,
// drives any returned promise to settlement, and marshals the settled
// value into a Response.
func (w *Worker) Run(name string, req Request) (*Response, error) {
	fnVal, err := w.handlers.Get(name)
	if err != nil || !fnVal.IsFunction() {
		return nil, apperrors.Internal(fmt.Sprintf("handler %q not found in bundle", name), err)
	}

	reqVal, err := marshalRequest(w.vm, req)
	if err != nil {
		return nil, apperrors.WorkerShape("marshalling request: " + err.Error())
	}

	resultVal, err := fnVal.Call(otto.NullValue(), reqVal)
	if err != nil {
		return nil, apperrors.WorkerRejected(err.Error())
	}

	settled, err := w.settle(resultVal)
	if err != nil {
		return nil, err
	}

	return unmarshalResponse(w.vm, settled)
}

// settle drives a handler's return value to a final plain value,
// returning WorkerRejected if it settles as a rejection.
func (w *Worker) settle(result otto.Value) (otto.Value, error) {
	var (
		settledValue otto.Value
		rejected     bool
		done         bool
	)

	onSettled := func(call otto.FunctionCall) otto.Value {
		ok, _ := call.Argument(0).ToBoolean()
		settledValue = call.Argument(1)
		rejected = !ok
		done = true
		return otto.UndefinedValue()
	}

	if err := w.vm.Set("__handlerResult__", result); err != nil {
		return otto.Value{}, apperrors.Internal("binding handler result", err)
	}
	if err := w.vm.Set("__onSettled__", onSettled); err != nil {
		return otto.Value{}, apperrors.Internal("binding settlement callback", err)
	}
	if _, err := w.vm.Run(settleSource); err != nil {
		return otto.Value{}, apperrors.Internal("driving promise to settlement", err)
	}

	for len(w.jobs) > 0 {
		job := w.jobs[0]
		w.jobs = w.jobs[1:]
		job()
	}

	if !done {
		return otto.Value{}, apperrors.WorkerRejected("handler promise never settled")
	}
	if rejected {
		return otto.Value{}, apperrors.WorkerRejected(describeValue(w.vm, settledValue))
	}
	return settledValue, nil
}

func describeValue(vm *otto.Otto, v otto.Value) string {
	if s, err := v.ToString(); err == nil {
		return s
	}
	return "handler rejected"
}
