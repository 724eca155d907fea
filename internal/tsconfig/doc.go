// Package tsconfig loads TypeScript compiler configuration files.
//
// Files are JSON with comments and trailing commas. Load returns the merged
// "compilerOptions" mapping, following "extends" chains. Path-valued options
// (outDir, rootDir, baseUrl, declarationDir) are rebased so they are relative
// to the working directory the loader was given.
package tsconfig
