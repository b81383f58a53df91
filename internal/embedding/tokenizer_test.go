package embedding

import "testing"

func TestWordTokenizer_Shape(t *testing.T) {
	tok := &WordTokenizer{}
	inputIDs, attentionMask, tokenTypeIDs := tok.Tokenize("hello world", 8)
	if len(inputIDs) != 8 || len(attentionMask) != 8 || len(tokenTypeIDs) != 8 {
		t.Fatalf("lengths: %d %d %d", len(inputIDs), len(attentionMask), len(tokenTypeIDs))
	}
	if inputIDs[0] != 101 {
		t.Errorf("first token should be [CLS], got %d", inputIDs[0])
	}
	// hello, world, then [SEP]
	if inputIDs[3] != 102 {
		t.Errorf("expected [SEP] at position 3, got %d", inputIDs[3])
	}
	if attentionMask[4] != 0 {
		t.Error("padding positions should have zero attention")
	}
}

func TestWordTokenizer_Deterministic(t *testing.T) {
	tok := &WordTokenizer{}
	a, _, _ := tok.Tokenize("semantic search", 16)
	b, _, _ := tok.Tokenize("semantic search", 16)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("token IDs differ at %d", i)
		}
	}
}

func TestWordTokenizer_Truncation(t *testing.T) {
	tok := &WordTokenizer{}
	inputIDs, _, _ := tok.Tokenize("a b c d e f g h i j", 4)
	if len(inputIDs) != 4 {
		t.Fatalf("len=%d", len(inputIDs))
	}
}
