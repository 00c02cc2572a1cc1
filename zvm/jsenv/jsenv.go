// Package jsenv compiles and runs decompiled fragments in an embedded
// JavaScript engine against a minimal runtime object.
package jsenv

import (
	"fmt"
	"strconv"

	"github.com/colorfulnotion/zdecomp/log"
	"github.com/dop251/goja"
)

// Compile checks that code is a valid function body and returns the compiled
// wrapper, which evaluates to function(e).
func Compile(name, code string) (*goja.Program, error) {
	prg, err := goja.Compile(name, "(function(e){"+code+"\n})", true)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return prg, nil
}

// HostCall is a runtime method invoked by a fragment that the environment
// does not implement itself.
type HostCall struct {
	Name string
	Args []int64
}

// Result is the outcome of running one fragment.
type Result struct {
	Returned bool  // the fragment executed a return with a value
	Value    int64 // the returned value
}

// the runtime object: word locals and stack, memory views over the image and
// the handful of helpers arithmetic and branch code depends on. Any other
// method is routed to host().
const bootstrap = `
var e = new Proxy({
	l: new Uint16Array(15),
	s: new Uint16Array(1024),
	sp: 0,
	pc: 0,
	stop: 0,
	quit: 0,
	frames: [],
	frameptr: 0,
	m: new DataView(memory),
	ram: new DataView(memory),
	jeq: function(a) {
		for (var i = 1; i < arguments.length; i++) {
			if (arguments[i] === a) return 1;
		}
		return 0;
	},
	variable: function(v) {
		if (v === 0) return this.s[this.sp - 1];
		if (v < 16) return this.l[v - 1];
		return this.m.getUint16(globals + 2 * (v - 16));
	},
	indirect: function(v, value) {
		if (arguments.length === 1) return this.variable(v);
		if (v === 0) this.s[this.sp - 1] = value;
		else if (v < 16) this.l[v - 1] = value;
		else this.ram.setUint16(globals + 2 * (v - 16), value);
	},
	incdec: function(v, delta) {
		var value = (this.variable(v) + delta) & 0xFFFF;
		this.indirect(v, value);
		return value;
	}
}, {
	get: function(target, name) {
		if (name in target) return target[name];
		return function() {
			return host(name, Array.prototype.slice.call(arguments));
		};
	}
});
`

// Env is a JavaScript runtime with one runtime object e. It is not safe for
// concurrent use.
type Env struct {
	vm    *goja.Runtime
	e     *goja.Object
	calls []HostCall
}

// New builds an environment whose memory views share memory.
func New(memory []byte, globals uint16) (*Env, error) {
	env := &Env{vm: goja.New()}
	env.vm.Set("memory", env.vm.NewArrayBuffer(memory))
	env.vm.Set("globals", globals)
	env.vm.Set("host", func(call goja.FunctionCall) goja.Value {
		hc := HostCall{Name: call.Argument(0).String()}
		if args, ok := call.Argument(1).Export().([]interface{}); ok {
			hc.Args = appendArgs(hc.Args, args)
		}
		env.calls = append(env.calls, hc)
		return env.vm.ToValue(0)
	})
	if _, err := env.vm.RunString(bootstrap); err != nil {
		return nil, fmt.Errorf("runtime bootstrap: %w", err)
	}
	env.e = env.vm.Get("e").ToObject(env.vm)
	return env, nil
}

// Run compiles code and runs it against the runtime object.
func (env *Env) Run(name, code string) (Result, error) {
	prg, err := Compile(name, code)
	if err != nil {
		return Result{}, err
	}
	fnValue, err := env.vm.RunProgram(prg)
	if err != nil {
		return Result{}, fmt.Errorf("load %s: %w", name, err)
	}
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return Result{}, fmt.Errorf("%s did not evaluate to a function", name)
	}
	ret, err := fn(goja.Undefined(), env.e)
	if err != nil {
		return Result{}, fmt.Errorf("run %s: %w", name, err)
	}
	log.Trace(log.CodegenMonitoring, "fragment ran", "name", name, "pc", env.PC())
	if goja.IsUndefined(ret) {
		return Result{}, nil
	}
	return Result{Returned: true, Value: ret.ToInteger()}, nil
}

// appendArgs flattens nested arrays, such as the argument list of e.call.
func appendArgs(dst []int64, args []interface{}) []int64 {
	for _, arg := range args {
		switch v := arg.(type) {
		case int64:
			dst = append(dst, v)
		case float64:
			dst = append(dst, int64(v))
		case []interface{}:
			dst = appendArgs(dst, v)
		}
	}
	return dst
}

func (env *Env) field(name string) goja.Value {
	return env.e.Get(name)
}

func (env *Env) PC() int64 {
	return env.field("pc").ToInteger()
}

// Stopped reports whether the fragment handed control back to the host.
func (env *Env) Stopped() bool {
	return env.field("stop").ToInteger() != 0
}

func (env *Env) Local(i int) uint16 {
	return uint16(env.field("l").ToObject(env.vm).Get(strconv.Itoa(i)).ToInteger())
}

func (env *Env) SetLocal(i int, v uint16) error {
	return env.field("l").ToObject(env.vm).Set(strconv.Itoa(i), v)
}

// Push pushes a word onto the stack.
func (env *Env) Push(v uint16) error {
	sp := env.field("sp").ToInteger()
	if err := env.field("s").ToObject(env.vm).Set(strconv.FormatInt(sp, 10), v); err != nil {
		return err
	}
	return env.e.Set("sp", sp+1)
}

// Pop pops a word off the stack.
func (env *Env) Pop() (uint16, error) {
	sp := env.field("sp").ToInteger()
	if sp == 0 {
		return 0, fmt.Errorf("stack underflow")
	}
	v := env.field("s").ToObject(env.vm).Get(strconv.FormatInt(sp-1, 10)).ToInteger()
	return uint16(v), env.e.Set("sp", sp-1)
}

func (env *Env) StackDepth() int {
	return int(env.field("sp").ToInteger())
}

// Calls returns the host calls made since the environment was built.
func (env *Env) Calls() []HostCall {
	return env.calls
}
