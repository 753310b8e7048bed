// Package reader decodes LLVM 3.0-era bitcode modules.
//
// Decode reads a whole module eagerly. DecodeLazy reads only the module
// skeleton (types, globals, function declarations, constants, metadata)
// and defers function bodies; the returned module's Mat materializer
// loads them on demand and can drop them again:
//
//	m, err := reader.DecodeLazy(data, reader.Options{Lazy: true})
//	...
//	err = m.Mat.Materialize(ctx, m.Funcs[0])
//
// ReadTargetTriple sniffs just the target triple without building a
// module, for cheap file identification.
//
// The decoder accepts raw bitcode as well as the wrapper-header form
// some toolchains emit, and tolerates the newline padding archive tools
// append to members.
package reader
