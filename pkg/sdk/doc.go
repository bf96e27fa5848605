// Package cortex is the Go client for the cortex HTTP API. It is the
// integration point for front-ends (CLI, web, chat bots): process notes
// against configured tasks, store notes in the vector index, and search
// them by semantic similarity.
//
// Basic usage:
//
//	client := cortex.NewClient("http://localhost:8080", cortex.WithAPIKey("secret"))
//	result, err := client.Process(ctx, cortex.ProcessRequest{
//		Text: "raw meeting notes ...",
//		Task: "summarize",
//	})
//
// API errors are returned as *APIError; check the Code field or use
// errors.As.
package cortex
