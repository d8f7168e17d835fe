package wormhole

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
)

var wordIndex = func() map[string]bool {
	m := make(map[string]bool, len(wordlist))
	for _, w := range wordlist {
		m[w] = true
	}
	return m
}()

// FormatCode joins a nameplate and its words into a code.
func FormatCode(nameplate int, words []string) Code {
	parts := append([]string{strconv.Itoa(nameplate)}, words...)
	return Code(strings.Join(parts, "-"))
}

// ParseCode normalises a code typed by a user and returns its nameplate.
func ParseCode(raw string) (Code, int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "-")
	parts := strings.Split(s, "-")
	if len(parts) < 2 {
		return "", 0, fmt.Errorf("%w: %q needs a nameplate and at least one word", ErrInvalidCode, raw)
	}
	nameplate, err := strconv.Atoi(parts[0])
	if err != nil || nameplate <= 0 {
		return "", 0, fmt.Errorf("%w: nameplate %q is not a positive number", ErrInvalidCode, parts[0])
	}
	for _, w := range parts[1:] {
		if !wordIndex[w] {
			return "", 0, fmt.Errorf("%w: unknown word %q", ErrInvalidCode, w)
		}
	}
	return Code(s), nameplate, nil
}

// randomWords picks n words uniformly from the word list.
func randomWords(n int) ([]string, error) {
	idx := make([]byte, n)
	if _, err := rand.Read(idx); err != nil {
		return nil, fmt.Errorf("failed to generate code words: %w", err)
	}
	words := make([]string, n)
	for i, b := range idx {
		words[i] = wordlist[b]
	}
	return words, nil
}
