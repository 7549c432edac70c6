// Package rubyshd implements a dual-protocol content server that terminates
// mutually-authenticated TLS connections and serves a single document tree
// over both Gemini and HTTPS, selecting the protocol by inspecting the raw
// request bytes rather than the transport port.
package rubyshd

const ApplicationName = `rubyshd`
const ApplicationSummary = `a dual-protocol (Gemini + HTTPS) templated content server`
const ApplicationVersion = `1.0.0`
