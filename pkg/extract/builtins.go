package extract

import "github.com/panbanda/callscope/pkg/parser"

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Bare calls to these names are never user code unless the file defines them.
var builtinFuncs = map[parser.Language]map[string]bool{
	parser.LangPython: set(
		"print", "len", "range", "str", "int", "float", "bool", "list", "dict", "set",
		"tuple", "frozenset", "bytes", "isinstance", "issubclass", "getattr", "setattr",
		"hasattr", "delattr", "super", "type", "repr", "sorted", "enumerate", "zip", "map",
		"filter", "sum", "min", "max", "any", "all", "open", "iter", "next", "abs",
		"round", "id", "hash", "format", "vars", "dir", "callable", "reversed", "object",
		"staticmethod", "classmethod", "property", "input", "chr", "ord", "divmod", "pow",
		"globals", "locals", "exec", "eval", "compile", "NotImplementedError",
		"ValueError", "TypeError", "KeyError", "RuntimeError", "Exception",
	),
	parser.LangJavaScript: set(
		"require", "setTimeout", "setInterval", "clearTimeout", "clearInterval",
		"parseInt", "parseFloat", "isNaN", "isFinite", "String", "Number", "Boolean",
		"Array", "Object", "Symbol", "Promise", "Error", "TypeError", "Map", "Set",
		"WeakMap", "Date", "RegExp", "encodeURIComponent", "decodeURIComponent",
		"structuredClone", "queueMicrotask", "fetch",
	),
	parser.LangGo: set(
		"append", "len", "cap", "make", "new", "delete", "panic", "recover", "print",
		"println", "copy", "close", "complex", "real", "imag", "min", "max", "clear",
		"string", "int", "int64", "int32", "uint", "uint64", "uint32", "byte", "rune",
		"float64", "float32", "error", "any", "bool",
	),
	parser.LangJava: set("super", "this"),
}

// Method calls on these receiver names are runtime library calls unless the
// name is bound in the file.
var globalObjects = map[parser.Language]map[string]bool{
	parser.LangJavaScript: set(
		"console", "Math", "JSON", "Object", "Array", "Promise", "Reflect", "Number",
		"String", "Date", "document", "window", "process", "globalThis", "Symbol",
		"Intl", "Buffer", "navigator", "localStorage", "sessionStorage",
	),
	parser.LangJava: set(
		"System", "Math", "String", "Integer", "Long", "Double", "Boolean", "Objects",
		"Arrays", "Collections", "List", "Map", "Set", "Optional", "Stream",
		"Collectors", "Thread", "Character",
	),
	parser.LangPython: set(),
	parser.LangGo:     set(),
}

// listMutators store their arguments into the receiver and are not
// dispatched as user calls.
var listMutators = set("append", "extend", "appendleft", "push", "unshift", "insert")

// keyedMutators store their last argument into the receiver; the call itself
// may still be a user method.
var keyedMutators = set("add", "put", "set", "setdefault", "add_observer", "addObserver", "attach", "subscribe", "register")

// iterators call their first closure argument once per element of the receiver.
var iterators = set("forEach", "map", "filter", "some", "every", "find", "flatMap", "findIndex")

// Python decorators that never invoke user code.
var passiveDecorators = set(
	"property", "staticmethod", "classmethod", "abstractmethod", "abstractproperty",
	"override", "dataclass", "setter", "getter", "deleter", "overload", "final",
	"cached_property", "wraps",
)

func lookupSet(m map[parser.Language]map[string]bool, lang parser.Language, name string) bool {
	if lang.IsJSFamily() {
		lang = parser.LangJavaScript
	}
	return m[lang][name]
}
