package keys

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obscura-systems/wallet-core/internal/types"
)

func TestNewSeedPhraseWordCounts(t *testing.T) {
	for _, count := range []int{12, 24} {
		phrase, err := NewSeedPhrase(count, types.LanguageEnglish)
		require.NoError(t, err)
		assert.Len(t, strings.Fields(phrase), count)
	}

	_, err := NewSeedPhrase(15, types.LanguageEnglish)
	assert.Error(t, err)
}

func TestFromSeedPhraseDeterministic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("same phrase always derives the same address", prop.ForAll(
		func(wordCount int) bool {
			count := 12
			if wordCount%2 == 0 {
				count = 24
			}
			phrase, err := NewSeedPhrase(count, types.LanguageEnglish)
			if err != nil {
				return false
			}

			a, err := FromSeedPhrase(phrase, types.LanguageEnglish)
			if err != nil {
				return false
			}
			b, err := FromSeedPhrase(phrase, types.LanguageEnglish)
			if err != nil {
				return false
			}

			addrA, err := a.Address()
			if err != nil {
				return false
			}
			addrB, err := b.Address()
			if err != nil {
				return false
			}
			return addrA == addrB
		},
		gen.Int(),
	))

	properties.TestingRun(t)
}

func TestEntropyRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("from_entropy(entropy(M)) equals from_seed_phrase(M)", prop.ForAll(
		func(wordCount int) bool {
			count := 12
			if wordCount%2 == 0 {
				count = 24
			}
			phrase, err := NewSeedPhrase(count, types.LanguageEnglish)
			if err != nil {
				return false
			}

			entropy, err := EntropyFromSeedPhrase(phrase, types.LanguageEnglish)
			if err != nil {
				return false
			}

			fromPhrase, err := FromSeedPhrase(phrase, types.LanguageEnglish)
			if err != nil {
				return false
			}
			fromEntropy, err := FromEntropy(entropy)
			if err != nil {
				return false
			}
			return fromPhrase.String() == fromEntropy.String()
		},
		gen.Int(),
	))

	properties.TestingRun(t)
}

func TestSeedPhraseFromEntropyInverse(t *testing.T) {
	phrase, err := NewSeedPhrase(12, types.LanguageEnglish)
	require.NoError(t, err)

	entropy, err := EntropyFromSeedPhrase(phrase, types.LanguageEnglish)
	require.NoError(t, err)

	rendered, err := SeedPhraseFromEntropy(entropy, types.LanguageEnglish)
	require.NoError(t, err)
	assert.Equal(t, phrase, rendered)
}

func TestNativeWordlistLanguages(t *testing.T) {
	native := []types.Language{
		types.LanguageEnglish,
		types.LanguageChineseSimplified,
		types.LanguageChineseTraditional,
		types.LanguageSpanish,
		types.LanguageItalian,
		types.LanguageJapanese,
	}

	for _, lang := range native {
		t.Run(string(lang), func(t *testing.T) {
			phrase, err := NewSeedPhrase(12, lang)
			require.NoError(t, err)

			sk, err := FromSeedPhrase(phrase, lang)
			require.NoError(t, err)
			addr, err := sk.Address()
			require.NoError(t, err)
			assert.NoError(t, ValidateAddress(addr))
		})
	}
}

func TestFallbackLanguagesUseEnglish(t *testing.T) {
	fallback := []types.Language{
		types.LanguageRussian,
		types.LanguageTurkish,
		types.LanguageEstonian,
		types.LanguageLithuanian,
		types.LanguageLatvian,
		types.LanguageDutch,
	}

	for _, lang := range fallback {
		t.Run(string(lang), func(t *testing.T) {
			phrase, err := NewSeedPhrase(12, lang)
			require.NoError(t, err)

			// A phrase produced under a fallback language is a valid
			// English phrase.
			_, err = FromSeedPhrase(phrase, types.LanguageEnglish)
			assert.NoError(t, err)
		})
	}
}

func TestFromSeedPhraseRejectsGarbage(t *testing.T) {
	_, err := FromSeedPhrase("not a real seed phrase at all", types.LanguageEnglish)
	assert.Error(t, err)
}

func TestFromSeedPhraseNormalizesWhitespace(t *testing.T) {
	phrase, err := NewSeedPhrase(12, types.LanguageEnglish)
	require.NoError(t, err)

	padded := "  " + strings.ReplaceAll(phrase, " ", "   ") + " \n"
	a, err := FromSeedPhrase(phrase, types.LanguageEnglish)
	require.NoError(t, err)
	b, err := FromSeedPhrase(padded, types.LanguageEnglish)
	require.NoError(t, err)
	assert.Equal(t, a.String(), b.String())
}
