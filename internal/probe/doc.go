// Package probe inspects image files: a cheap header read for input
// dimensions and a full decode to verify upscaler outputs.
//
// PNG, JPEG and WebP decoders are registered on import so the standard
// image registry and imaging both understand every supported extension.
package probe
