// Package keypool implements the credential scheduler for upstream API keys.
//
// A Pool owns an ordered set of key records parsed from a credential spec
// string such as "key1:10,key2:5,key3". Selection spreads traffic across
// keys proportionally to their dynamic weight using quantized priority
// buckets with a rotating cursor, avoiding immediate repeats where another
// candidate exists.
//
// Keys are penalized on upstream errors (multiplicative weight decay plus a
// health state transition keyed on the status code) and restored gradually
// by a recovery tick that runs on every selection. When every key has been
// penalized into ineligibility the pool performs a global reset, trading
// short-term fairness for availability.
//
// All exported Pool methods are safe for concurrent use.
package keypool
