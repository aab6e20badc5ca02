// uniapi is a multi-provider LLM gateway: one OpenAI/Anthropic/Gemini-shaped
// endpoint backed by any number of configured upstream providers, with
// model-aware failover, a hot-reloadable configuration document, and an
// admin surface for operators.
//
// Usage:
//
//	# Start the gateway with the default configuration path
//	uniapi run
//
//	# Start with a custom configuration file
//	uniapi run --config /path/to/config.yaml
//
//	# Validate a configuration file without starting the gateway
//	uniapi validate --config /path/to/config.yaml
//
//	# Show version information
//	uniapi version
package main

func main() {
	Execute()
}
