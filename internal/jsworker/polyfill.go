package jsworker

// promiseSource is injected into every VM before the bundle runs. otto
// implements ECMAScript 5.1 and has no builtin Promise; scripts that
// construct one by hand (rather than relying on the bundler's
// async/await strip) still need a real thenable to hand back.
//
// __enqueueJob__ is bound from Go (see New) and appends a zero-argument
// callback to the worker's job queue rather than running it inline, so a
// chain of .then callbacks unwinds breadth-first the same way a real
// microtask queue would, even though nothing here is ever genuinely
// asynchronous.
const promiseSource = `
(function (global) {
  if (global.Promise) {
    return;
  }

  function isFunction(f) {
    return typeof f === "function";
  }

  function Promise(executor) {
    this._state = "pending";
    this._value = undefined;
    this._callbacks = [];

    var self = this;

    function resolve(value) {
      if (self._state !== "pending") {
        return;
      }
      if (value && isFunction(value.then)) {
        value.then(resolve, reject);
        return;
      }
      self._state = "fulfilled";
      self._value = value;
      self._flush();
    }

    function reject(reason) {
      if (self._state !== "pending") {
        return;
      }
      self._state = "rejected";
      self._value = reason;
      self._flush();
    }

    try {
      executor(resolve, reject);
    } catch (e) {
      reject(e);
    }
  }

  Promise.prototype._flush = function () {
    if (this._state === "pending") {
      return;
    }
    var cbs = this._callbacks;
    this._callbacks = [];
    var state = this._state;
    var value = this._value;
    cbs.forEach(function (cb) {
      __enqueueJob__(function () {
        if (state === "fulfilled" && isFunction(cb.onFulfilled)) {
          cb.onFulfilled(value);
        } else if (state === "rejected" && isFunction(cb.onRejected)) {
          cb.onRejected(value);
        }
      });
    });
  };

  Promise.prototype.then = function (onFulfilled, onRejected) {
    var self = this;
    return new Promise(function (resolve, reject) {
      self._callbacks.push({
        onFulfilled: function (v) {
          try {
            resolve(isFunction(onFulfilled) ? onFulfilled(v) : v);
          } catch (e) {
            reject(e);
          }
        },
        onRejected: function (e) {
          try {
            if (isFunction(onRejected)) {
              resolve(onRejected(e));
            } else {
              reject(e);
            }
          } catch (err) {
            reject(err);
          }
        }
      });
      self._flush();
    });
  };

  Promise.prototype.catch = function (onRejected) {
    return this.then(undefined, onRejected);
  };

  Promise.resolve = function (v) {
    if (v && isFunction(v.then)) {
      return v;
    }
    return new Promise(function (resolve) {
      resolve(v);
    });
  };

  Promise.reject = function (e) {
    return new Promise(function (resolve, reject) {
      reject(e);
    });
  };

  global.Promise = Promise;
})(this);
`

// settleSource drives result (bound to __handlerResult__) to settlement.
// If it is not a thenable, __onSettled__ fires immediately with the plain
// value; otherwise it fires once the promise's callback chain runs during
// job-queue draining.
const settleSource = `
(function (result, onSettled) {
  if (result && typeof result.then === "function") {
    result.then(
      function (v) { onSettled(true, v); },
      function (e) { onSettled(false, e); }
    );
  } else {
    onSettled(true, result);
  }
})(__handlerResult__, __onSettled__);
`
