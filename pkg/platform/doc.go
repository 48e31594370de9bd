// Package platform is the typed boundary to the marketplace data
// platform.
//
// The platform owns persistence, authorization and relational
// integrity; this package owns nothing but the contract: tagged
// request/response types per operation, validated before anything goes
// on the wire, and small interfaces (Mutator, SessionSource,
// RowReader) that the rest of the toolkit consumes so tests can
// substitute fakes.
//
// RESTClient implements the interfaces over the platform's HTTP API.
// Storage wraps the platform's S3-compatible object store for design
// uploads.
package platform
