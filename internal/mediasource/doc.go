// Package mediasource defines the contract between the engine and the
// device media library it indexes.
//
// The engine never enumerates device media directly; it consumes a Provider
// implementation supplied by the host platform. This package also contains
// the media-kind and MIME tables used to filter unsupported formats before
// extraction, and a deterministic in-memory FakeProvider used throughout
// the test suite.
//
// FSProvider is the production implementation for server deployments: it
// enumerates a media directory tree, standing in for a platform media
// library.
package mediasource
