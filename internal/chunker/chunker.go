// Package chunker splits document text into overlapping word windows.
package chunker

import "strings"

// Split cuts text into windows of up to chunkSize words, with consecutive
// windows sharing overlap words. Splitting happens on word boundaries (runs
// of whitespace), never inside a word, and the output is deterministic for a
// given input and parameter pair.
//
// The advance step is max(1, chunkSize-overlap), so an overlap greater than
// or equal to chunkSize still makes forward progress of at least one word per
// window instead of looping forever.
//
// Empty or whitespace-only input yields no chunks. A non-positive chunkSize
// yields no chunks since no window can hold a word.
func Split(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		return nil
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := chunkSize - overlap
	if step < 1 {
		step = 1
	}

	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
