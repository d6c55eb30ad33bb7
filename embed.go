package reasonerwebui

import "embed"

// TemplateFS contains the embedded HTML templates used to export a rendered transcript.
//
//go:embed templates/*
var TemplateFS embed.FS
