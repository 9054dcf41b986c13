// Package parser extracts learning notes from markdown files.
//
// A line starting with "# " opens a note whose title is the heading text.
// The lines that follow, up to the next such heading or a "---" separator,
// form the note's understanding. Headings inside fenced code blocks are
// treated as body text.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/memomind/internal/domain"
)

const (
	headingPrefix = "# "
	separator     = "---"
	fence         = "```"
)

type state int

const (
	seeking state = iota
	readingBody
)

// ParseFile reads a file from the given path and extracts all notes.
func ParseFile(path string) ([]domain.NoteDraft, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all notes. Notes without a
// title or body are dropped.
func Parse(r io.Reader) ([]domain.NoteDraft, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var notes []domain.NoteDraft
	var title string
	var body []string
	currentState := seeking
	inFence := false

	finishNote := func() {
		understanding := strings.TrimSpace(strings.Join(body, "\n"))
		if currentState == readingBody && title != "" && understanding != "" {
			notes = append(notes, domain.NoteDraft{Title: title, Understanding: understanding})
		}
		title = ""
		body = nil
		currentState = seeking
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.HasPrefix(strings.TrimSpace(line), fence) {
			inFence = !inFence
		} else if !inFence {
			if strings.TrimSpace(line) == separator {
				finishNote()
				continue
			}
			if strings.HasPrefix(line, headingPrefix) {
				finishNote() // A new heading always starts a new note
				title = strings.TrimSpace(line[len(headingPrefix):])
				currentState = readingBody
				continue
			}
		}

		if currentState == readingBody {
			body = append(body, line)
		}
	}

	finishNote() // Finish the very last note in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return notes, nil
}
