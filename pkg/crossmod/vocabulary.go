package crossmod

import "strings"

// factoryPrefixes are normalized (lowercase, underscores removed) name
// prefixes of construction functions.
var factoryPrefixes = []string{"create", "build", "make", "new", "getinstance", "from", "produce"}

// IsFactoryName reports whether a function name uses construction
// vocabulary: create, create_handler, buildClient, NewServer, get_instance,
// from_config, widget_factory.
func IsFactoryName(name string) bool {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	norm := strings.ToLower(strings.ReplaceAll(name, "_", ""))
	if strings.Contains(norm, "factory") {
		return true
	}
	for _, p := range factoryPrefixes {
		if strings.HasPrefix(norm, p) && (len(norm) > len(p) || p != "from") {
			return true
		}
	}
	return false
}

var registrars = map[string]bool{
	"on": true, "once": true, "subscribe": true, "add_listener": true, "addListener": true,
	"addEventListener": true, "connect": true, "register": true, "listen": true, "bind": true,
	"add_handler": true, "addHandler": true, "add_callback": true, "addCallback": true,
	"register_callback": true, "registerCallback": true,
}

// IsRegistrar reports whether a method name registers callbacks.
func IsRegistrar(name string) bool {
	return registrars[name]
}

// FollowBinding follows re-exports from name in module to the module that
// defines it. Star imports are not followed.
func (c *Context) FollowBinding(module, name string) (string, string) {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	seen := make(map[string]bool)
	for {
		key := module + "\x00" + name
		if seen[key] {
			return module, name
		}
		seen[key] = true
		next := false
		for _, f := range c.filesOf[module] {
			if b, ok := c.bindings[f][name]; ok && !b.IsModule() {
				module, name = b.Module, b.Name
				next = true
				break
			}
		}
		if !next {
			return module, name
		}
	}
}
