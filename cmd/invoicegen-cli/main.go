package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	invoicegen "github.com/goliatone/go-invoicegen"
	"github.com/goliatone/go-invoicegen/pkg/document"
)

func main() {
	templatePath := flag.String("template", "", "template file (.json or .yaml)")
	dataPath := flag.String("data", "", "invoice view-model JSON file")
	output := flag.String("output", "", "output file (stdout if empty)")
	mode := flag.String("mode", "document", "output mode: fragment, css, or document")
	title := flag.String("title", "", "document title (document mode)")
	flag.Parse()

	if *templatePath == "" || *dataPath == "" {
		log.Fatalf("both -template and -data are required")
	}

	templateBytes, err := os.ReadFile(*templatePath)
	if err != nil {
		log.Fatalf("Failed to read template: %v", err)
	}
	dataBytes, err := os.ReadFile(*dataPath)
	if err != nil {
		log.Fatalf("Failed to read view-model: %v", err)
	}

	var viewModel map[string]any
	if err := json.Unmarshal(dataBytes, &viewModel); err != nil {
		log.Fatalf("Failed to decode view-model: %v", err)
	}

	req := invoicegen.Request{ViewModel: viewModel}
	if isYAMLPath(*templatePath) {
		req.TemplateYAML = templateBytes
	} else {
		req.TemplateJSON = templateBytes
	}

	ctx := context.Background()
	pipeline := invoicegen.New()

	var rendered string
	switch *mode {
	case "fragment", "css":
		fragment, err := pipeline.Preview(ctx, req)
		if err != nil {
			log.Fatalf("Failed to render fragment: %v", err)
		}
		if *mode == "css" {
			rendered = fragment.CSS
		} else {
			rendered = fragment.HTML
		}
	case "document":
		doc, err := pipeline.Document(ctx, req, document.Options{Title: *title})
		if err != nil {
			log.Fatalf("Failed to render document: %v", err)
		}
		rendered = doc
	default:
		log.Fatalf("unknown mode %q", *mode)
	}

	if *output != "" {
		if err := os.WriteFile(*output, []byte(rendered), 0o644); err != nil {
			log.Fatalf("Failed to write output: %v", err)
		}
		fmt.Printf("Output written to %s\n", *output)
	} else {
		fmt.Println(rendered)
	}
}

func isYAMLPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
