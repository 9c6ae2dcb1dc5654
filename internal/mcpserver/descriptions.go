package mcpserver

// Tool descriptions with interpretation guidance for LLMs.
// Each description explains what the tool does, when to use it,
// how to interpret results, and what is returned.

func describeCallersOf() string {
	return `Lists every function that calls the given function, across files and languages.

USE WHEN:
- Estimating the blast radius of changing a function's signature or behavior
- Finding who reaches an interface method through observers, strategies or factories
- Tracing how an entry point is reached

INTERPRETING RESULTS:
- kind "direct": a literal call resolved by name (same file, import, or self method)
- kind "dynamic": a receiver-typed call resolved through type flow, or a unique-name fallback
- kind "pattern_dispatch": an indirect call a design-pattern recognizer inferred
- count > 1: the caller calls the function from several call sites
- provenance names the producers of the edge (local, import, self, typeflow, basename, closure, or a pattern kind)
- An ambiguous function name returns an error listing the file:qualified_name candidates

METRICS RETURNED:
- function: the queried function id (qualified_name, file, line)
- edges: caller id, kind, count, provenance per edge`
}

func describeCalleesOf() string {
	return `Lists every function the given function calls, including calls resolved across files.

USE WHEN:
- Understanding what a function depends on before refactoring it
- Following a dispatch loop to the concrete implementations it reaches
- Checking which implementations a factory or strategy call can select

INTERPRETING RESULTS:
- kind "direct" edges are certain; "dynamic" edges depend on inferred receiver types
- "pattern_dispatch" edges come from observer, factory, strategy, callback, singleton or template-method recognition
- A call that could not be resolved does not appear; calls into libraries outside the analyzed paths are dropped
- The same callee can appear with several kinds when more than one resolution step found it

METRICS RETURNED:
- function: the queried function id
- edges: callee id, kind, count, provenance per edge`
}

func describeListFunctions() string {
	return `Lists the functions, methods and closures in the call graph.

USE WHEN:
- Looking up the exact qualified name or file of a function before calling callers_of or callees_of
- Enumerating the methods of a class (filter by "ClassName.")
- Listing the definitions of one file

INTERPRETING RESULTS:
- Methods are qualified by their class path, nested functions by their enclosing function
- Anonymous functions are named <lambda> (Python) or <anonymous> (other languages)
- line is the declaration line (the def/func keyword), never a decorator line

METRICS RETURNED:
- A sorted list of function ids: qualified_name, file, line`
}

func describePatterns() string {
	return `Lists design-pattern instances that turn indirect calls into call-graph edges.

USE WHEN:
- Finding observer/listener registries and where they are notified
- Finding factories and the classes they can return
- Understanding plugin, strategy and callback wiring that static name lookup misses

INTERPRETING RESULTS:
- observer: an interface method called in a loop over registered observers; every override is an implementation
- factory: a function returning instances of several classes; methods called on its result dispatch to all of them
- strategy: an injected collaborator held in a field and called through it
- callback: a function passed as an argument and later invoked by the registrar
- singleton: accessor-returned shared instances
- template_method: a base-class method calling an abstract hook overridden by subclasses
- edges = implementations x dispatch sites

METRICS RETURNED:
- Per instance: kind, defining_type, method, implementations, dispatch_sites, provenance`
}

func describeGraphStats() string {
	return `Summarizes the call graph: sizes, resolution outcome, central functions and recursion.

USE WHEN:
- Getting an overview of a codebase's call structure
- Checking how much of the cross-file call surface was resolved
- Finding hub functions and recursive cycles

INTERPRETING RESULTS:
- resolution.exact/basename/pattern count cross-file calls resolved at each step; dropped calls found no target
- A high dropped share usually means calls into external libraries
- hubs are ranked by PageRank over call edges; high scores mark widely reached functions
- recursion_groups are strongly connected components of two or more functions, or self-recursive functions
- fingerprint changes whenever the edge set changes

METRICS RETURNED:
- summary: nodes, edges by kind, unresolved, dropped, patterns, files analyzed/skipped
- resolution, hubs, recursion_groups, run_id, fingerprint, duration`
}
