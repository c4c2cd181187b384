package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func numberProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": description}
}

func integerProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

func boolProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": description}
}

// regionProps are shared by the tools that accept a region of interest.
func regionProps() map[string]interface{} {
	point := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"x": numberProp("X coordinate in pixels"),
			"y": numberProp("Y coordinate in pixels"),
		},
		"required": []string{"x", "y"},
	}
	return map[string]interface{}{
		"region": map[string]interface{}{
			"type":        "object",
			"description": "Optional axis-aligned crop, clipped to the image. Mutually exclusive with points and detect_page.",
			"properties": map[string]interface{}{
				"x":      integerProp("Left edge (0-based)"),
				"y":      integerProp("Top edge (0-based)"),
				"width":  integerProp("Width in pixels"),
				"height": integerProp("Height in pixels"),
			},
			"required": []string{"x", "y", "width", "height"},
		},
		"points": map[string]interface{}{
			"type":        "array",
			"description": "Optional page corners to unwarp, ordered bottom-left, bottom-right, top-right, top-left. Mutually exclusive with region and detect_page.",
			"items":       point,
			"minItems":    4,
			"maxItems":    4,
		},
		"detect_page": boolProp("Find the page outline automatically and unwarp it"),
	}
}

// solverProps are the per-call solver overrides.
func solverProps() map[string]interface{} {
	return map[string]interface{}{
		"rate":               numberProp("Downsample factor in (0, 1] for the flood stage. Smaller is faster and smoother (default from config, 1)"),
		"flood_iterations":   integerProp("Flood-and-effuse iterations (default 2500)"),
		"refine_iterations":  integerProp("Full-resolution refinement iterations (default 100)"),
		"workers":            integerProp("Goroutines per sweep (default 1)"),
		"diagnostics_prefix": stringProp("Write checkpoint surfaces to <prefix>wf_t=<i>.jpg and <prefix>if_t=<i>.jpg"),
		"heatmap":            boolProp("Render diagnostics in false colour"),
	}
}

func merge(maps ...map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	pathProp := map[string]interface{}{"path": stringProp("Absolute path to the image file")}

	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and colour layout. The decoded image is cached for later calls.",
			InputSchema: objectSchema(pathProp, "path"),
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: objectSchema(pathProp, "path"),
		},

		// Shadow Removal
		{
			Name: "shadow_remove",
			Description: "Remove shadows and uneven lighting from a document photo with the water-filling method. " +
				"Colour is preserved; the result is saved as an image file.",
			InputSchema: objectSchema(merge(pathProp, regionProps(), solverProps(), map[string]interface{}{
				"output_path":  stringProp("Where to save the result. Defaults to a new file in the temp directory"),
				"return_image": boolProp("Also return the result inline as base64 PNG"),
			}), "path"),
		},
		{
			Name:        "shadow_estimate",
			Description: "Estimate the shading surface of a document photo without correcting it, and save it as a grayscale image.",
			InputSchema: objectSchema(merge(pathProp, regionProps(), solverProps(), map[string]interface{}{
				"output_path": stringProp("Where to save the shading image. Defaults to a new file in the temp directory"),
			}), "path"),
		},

		{
			Name:        "page_detect",
			Description: "Find the outline of a photographed page. The returned corners can be passed back as points.",
			InputSchema: objectSchema(pathProp, "path"),
		},

		// Evaluation
		{
			Name: "image_quality_metrics",
			Description: "Score a shadow-removal result against ground truth with PSNR and SSIM. " +
				"The ground truth is cut to the given region and resized to the result when needed.",
			InputSchema: objectSchema(merge(regionProps(), map[string]interface{}{
				"result_path": stringProp("Absolute path to the corrected image"),
				"truth_path":  stringProp("Absolute path to the ground-truth image"),
				"region_path": stringProp("Optional rectangle or polygon JSON file applied to the ground truth"),
			}), "result_path", "truth_path"),
		},
		{
			Name:        "image_quality_batch",
			Description: "Score a batch of results listed in .lst files and optionally write filename,psnr,ssim CSV and a bar chart.",
			InputSchema: objectSchema(map[string]interface{}{
				"results_list": stringProp("List of result images, one path per line relative to the list"),
				"truths_list":  stringProp("List of ground-truth images in the same order"),
				"regions_list": stringProp("Optional list of region JSON files for the ground truth"),
				"csv_path":     stringProp("Optional CSV output path"),
				"plot_path":    stringProp("Optional PNG chart output path"),
			}, "results_list", "truths_list"),
		},
		{
			Name:        "shadow_ocr_compare",
			Description: "Remove shadows and compare Tesseract readability (word count and mean confidence) before and after.",
			InputSchema: objectSchema(merge(pathProp, regionProps(), solverProps(), map[string]interface{}{
				"language": stringProp("Tesseract language code (default from config, eng)"),
			}), "path"),
		},
	}
}
