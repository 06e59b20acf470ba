// Polaris is an edge gateway for a generative-language HTTP API.
//
// It fronts the upstream API with a weighted pool of operator
// credentials, schedules requests across them, reacts to upstream
// errors by degrading and recovering key weights, and serves two wire
// dialects: the upstream's native one and an OpenAI-compatible one.
//
// Usage:
//
//	# Start the gateway with default configuration
//	polaris run
//
//	# Start with a custom configuration file
//	polaris run --config /etc/polaris/polaris.yaml
//
//	# Validate a configuration file
//	polaris validate --config polaris.yaml
//
//	# Verify credentials against the upstream
//	polaris keys verify --keys "key-one:2,key-two"
//
//	# Show version information
//	polaris version
package main

func main() {
	Execute()
}
