// Package audio opens mono float32 output streams driven by a pull callback.
// The default backend uses oto/v3; PortAudio is available behind the
// portaudio build tag and a paced null device stands in when no sound
// hardware is present.
package audio
