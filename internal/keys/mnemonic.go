package keys

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tyler-smith/go-bip39"
	"github.com/tyler-smith/go-bip39/wordlists"

	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// wordListMu guards the bip39 package-level word list, which is process
// global.
var wordListMu sync.Mutex

// wordList returns the native BIP-39 word list for the language. Languages
// without a native list fall back to English.
func wordList(lang types.Language) []string {
	switch lang {
	case types.LanguageChineseSimplified:
		return wordlists.ChineseSimplified
	case types.LanguageChineseTraditional:
		return wordlists.ChineseTraditional
	case types.LanguageSpanish:
		return wordlists.Spanish
	case types.LanguageItalian:
		return wordlists.Italian
	case types.LanguageJapanese:
		return wordlists.Japanese
	default:
		return wordlists.English
	}
}

// NewSeedPhrase generates a fresh 12- or 24-word seed phrase in the given
// language.
func NewSeedPhrase(wordCount int, lang types.Language) (string, error) {
	var bits int
	switch wordCount {
	case 12:
		bits = 128
	case 24:
		bits = 256
	default:
		return "", werr.Validation(fmt.Sprintf("seed phrase must have 12 or 24 words, got %d", wordCount))
	}

	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", werr.Internal("entropy generation failed", err)
	}

	wordListMu.Lock()
	defer wordListMu.Unlock()
	bip39.SetWordList(wordList(lang))
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", werr.Internal("mnemonic generation failed", err)
	}
	return mnemonic, nil
}

// EntropyFromSeedPhrase recovers the BIP-39 entropy behind a seed phrase.
func EntropyFromSeedPhrase(mnemonic string, lang types.Language) ([]byte, error) {
	wordListMu.Lock()
	defer wordListMu.Unlock()
	bip39.SetWordList(wordList(lang))

	entropy, err := bip39.EntropyFromMnemonic(normalizePhrase(mnemonic))
	if err != nil {
		return nil, werr.InvalidData(fmt.Sprintf("mnemonic rejected: %v", err), "Invalid seed phrase")
	}
	return entropy, nil
}

// FromSeedPhrase derives the spending key for a seed phrase. Equivalent to
// FromEntropy over the phrase's entropy.
func FromSeedPhrase(mnemonic string, lang types.Language) (*SpendingKey, error) {
	entropy, err := EntropyFromSeedPhrase(mnemonic, lang)
	if err != nil {
		return nil, err
	}
	return FromEntropy(entropy)
}

// SeedPhraseFromEntropy renders entropy back into a phrase, used when
// re-displaying a stored wallet's phrase.
func SeedPhraseFromEntropy(entropy []byte, lang types.Language) (string, error) {
	wordListMu.Lock()
	defer wordListMu.Unlock()
	bip39.SetWordList(wordList(lang))

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", werr.InvalidData(fmt.Sprintf("entropy rejected: %v", err), "Invalid seed phrase")
	}
	return mnemonic, nil
}

// normalizePhrase collapses whitespace so pasted phrases survive formatting.
func normalizePhrase(mnemonic string) string {
	return strings.Join(strings.Fields(mnemonic), " ")
}
