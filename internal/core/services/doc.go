// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The ingestion pipeline, retriever, RAG orchestrator and summarizer live
// here. They talk to providers and storage only through driven ports.
package services
