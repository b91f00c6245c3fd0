package main

import (
	"os"

	"eva-chat/backend/internal/app"
)

// @title Eva Chat API
// @version 1.0
// @description Biomedical research chat backend: conversations, streaming turns, annotations and report curation.
// @BasePath /api
func main() {
	os.Exit(app.Run())
}
