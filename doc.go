// Package playground is the control plane behind the Envoy playground.
//
// # Overview
//
// Browser clients build small Envoy topologies: networks, Envoy proxies
// started from a user supplied configuration, and upstream services picked
// from a registry of service types. The control plane turns those requests
// into Docker networks and containers and streams every resulting change to
// all connected sessions.
//
// # Architecture
//
//	┌─────────────────┐   HTTP actions   ┌─────────────────┐
//	│  Browser        ├─────────────────►│  Validator      │
//	│  sessions       │                  └────────┬────────┘
//	│  (WebSocket)    │   envelopes      ┌────────▼────────┐
//	│                 ├─────────────────►│  Dispatcher     │◄── Docker events
//	└────────▲────────┘                  └────────┬────────┘
//	         │                           ┌────────▼────────┐
//	         │                           │  Kind handlers  ├──► Docker
//	         │                           └────────┬────────┘
//	         │        payloads           ┌────────▼────────┐
//	         └───────────────────────────┤  Publisher      ├──► NATS (optional)
//	                                     └─────────────────┘
//
// Client envelopes carry a side effect the handler performs through the
// connector. Engine envelopes report something Docker already did, so the
// handler only publishes.
//
// # Usage
//
// Start the API server:
//
//	playground server --config configs/config.yaml
//
// Remove every playground resource:
//
//	playground clear
//
// Print the current resources:
//
//	playground dump
//
// # Configuration
//
// Configuration can be provided via:
//   - YAML file (configs/config.yaml)
//   - Environment variables (PG_ prefix)
//   - .env file
//
// Example configuration:
//
//	server:
//	  port: 8080
//	playground:
//	  envoy_image: envoyproxy/envoy-dev:latest
//	  max_network_connections: 5
//	nats:
//	  url: nats://localhost:4222
//
// # API Endpoints
//
// Actions (JSON bodies, reply {"message": "OK"}):
//   - POST /network/add       - Create a network
//   - POST /network/edit      - Set the proxies and services on a network
//   - POST /network/delete    - Remove a network
//   - POST /proxy/add         - Start an Envoy proxy
//   - POST /proxy/delete      - Remove a proxy
//   - POST /service/add       - Start an upstream service
//   - POST /service/delete    - Remove a service
//   - POST /clear             - Remove every playground resource
//
// Reads:
//   - GET /resources   - Current networks, proxies and services with metadata
//   - GET /metadata    - Name, configuration and connection limits
//   - GET /health      - Docker reachability
//   - GET /metrics     - Prometheus metrics
//   - GET /docs/*      - Swagger UI
//
// WebSocket:
//   - GET /ws          - Session receiving every published payload
//   - GET /ws/stats    - Connected session count
//
// # Development
//
// Run tests (no Docker daemon required):
//
//	go test ./...
//
// Build the binary:
//
//	go build -o playground ./cmd/playground
package playground
