// Package types holds the shared data model crossing package boundaries:
// service/tool definitions used by the provider registry, execution results,
// and the request bodies accepted by the HTTP command surface.
package types
