package ocr

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// DefaultLanguage is the Tesseract language used when none is given.
const DefaultLanguage = "eng"

// Options selects the Tesseract model.
type Options struct {
	// Language is a Tesseract language code such as "eng" or "deu+eng".
	Language string

	// TessdataPrefix overrides the directory holding *.traineddata files.
	TessdataPrefix string
}

// Word is one recognized word.
type Word struct {
	Text string `json:"text"`

	// Confidence is Tesseract's word confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Bounds is the word box in image coordinates.
	Bounds image.Rectangle `json:"bounds"`
}

// Readability summarizes how well a page can be read by OCR.
type Readability struct {
	// Text is the full recognized text.
	Text string `json:"text"`

	// Words is the number of non-empty recognized words.
	Words int `json:"words"`

	// MeanConfidence is the average word confidence in [0, 1]; zero when no
	// word was found.
	MeanConfidence float64 `json:"mean_confidence"`

	// WordList holds the individual words with their boxes.
	WordList []Word `json:"word_list,omitempty"`
}

// Measure runs Tesseract on img and summarizes the recognized words.
//
// Parameters:
//   - img: The page to read, typically a shadow-removal result.
//   - opts: Language and model location. A zero Options uses DefaultLanguage
//     and the system tessdata directory.
//
// Returns:
//   - *Readability: Word count, mean confidence and the recognized text.
//   - error: Non-nil if the image cannot be encoded or Tesseract fails.
func Measure(img image.Image, opts Options) (*Readability, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image for OCR: %w", err)
	}

	client, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get word boxes: %w", err)
	}

	r := &Readability{Text: text, WordList: make([]Word, 0, len(boxes))}
	var total float64
	for _, box := range boxes {
		word := strings.TrimSpace(box.Word)
		if word == "" {
			continue
		}
		conf := box.Confidence / 100
		r.WordList = append(r.WordList, Word{Text: word, Confidence: conf, Bounds: box.Box})
		total += conf
	}
	r.Words = len(r.WordList)
	if r.Words > 0 {
		r.MeanConfidence = total / float64(r.Words)
	}
	return r, nil
}

func newClient(opts Options) (*gosseract.Client, error) {
	lang := opts.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	client := gosseract.NewClient()
	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(strings.Split(lang, "+")...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	return client, nil
}

// Comparison reports OCR readability before and after shadow removal.
type Comparison struct {
	Before *Readability `json:"before"`
	After  *Readability `json:"after"`

	// WordGain is After.Words - Before.Words.
	WordGain int `json:"word_gain"`

	// ConfidenceGain is After.MeanConfidence - Before.MeanConfidence.
	ConfidenceGain float64 `json:"confidence_gain"`
}

// Improved reports whether the corrected page reads at least as many words
// with no loss of mean confidence.
func (c *Comparison) Improved() bool {
	return c.WordGain >= 0 && c.ConfidenceGain >= 0
}

// Compare measures before and after with the same options.
func Compare(before, after image.Image, opts Options) (*Comparison, error) {
	b, err := Measure(before, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read original: %w", err)
	}
	a, err := Measure(after, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read corrected image: %w", err)
	}
	return &Comparison{
		Before:         b,
		After:          a,
		WordGain:       a.Words - b.Words,
		ConfidenceGain: a.MeanConfidence - b.MeanConfidence,
	}, nil
}

// Version returns the linked Tesseract version.
func Version() string {
	return gosseract.Version()
}
