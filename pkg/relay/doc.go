// Package relay forwards upstream streaming response bodies to clients
// byte-for-byte while tracking active-stream lifecycle.
//
// Every stream is registered with an id, start time and owning credential.
// Natural completion and consumer cancellation both unregister the stream;
// a periodic sweep cancels streams that outlive a fixed timeout so the
// registry stays bounded when clients disconnect without signaling.
package relay
