// Package docdex provides a local documentation indexing and retrieval
// engine. It crawls documentation sites, splits their content into
// token-bounded chunks, embeds the chunks through a local Ollama service,
// stores them in a hybrid SQLite + vector store, and serves semantic
// search to AI coding agents over the Model Context Protocol.
//
// This package contains domain types and interfaces following Ben
// Johnson's Standard Package Layout. Implementations live in
// subdirectories named after their primary dependency (e.g., sqlite/,
// chromem/, ollama/, goquery/, rod/) or their concern (crawl/, chunk/,
// index/, mcp/).
package docdex
