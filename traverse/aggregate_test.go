package traverse

import (
	"testing"

	"github.com/trawlkit/trawl/models"
)

func aggRecord(name, sku, url string) models.Record {
	return models.Record{Source: "grocer", Query: "lait", Name: name, SKU: sku, URL: url}
}

func TestAggregate_FirstSeenWins(t *testing.T) {
	agg := NewAggregate()

	if !agg.Add(aggRecord("Lait 2% Natrel", "123", "https://grocer.example/p/lait-2")) {
		t.Fatal("first record rejected, want kept")
	}
	if agg.Add(aggRecord("Lait 2% Natrel 2L", "123", "https://grocer.example/p/lait-2-2l")) {
		t.Error("second record with the same sku kept, want dropped")
	}

	recs := agg.Records()
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].Name != "Lait 2% Natrel" {
		t.Errorf("got %q, want the first-seen record", recs[0].Name)
	}
}

func TestAggregate_UrlAliasCatchesSkulessDuplicate(t *testing.T) {
	agg := NewAggregate()

	a := aggRecord("Lait 2% Natrel", "123", "https://grocer.example/p/lait-2")
	b := aggRecord("Lait 2% Natrel", "", "https://grocer.example/p/lait-2")
	c := aggRecord("Pain baguette", "777", "https://grocer.example/p/pain")

	if !agg.Add(a) {
		t.Fatal("record a rejected, want kept")
	}
	if agg.Add(b) {
		t.Error("sku-less record with a seen url kept, want dropped")
	}
	if !agg.Add(c) {
		t.Error("novel record rejected, want kept")
	}
	if agg.Len() != 2 {
		t.Errorf("got %d records, want 2", agg.Len())
	}
}

func TestAggregate_IdempotentInsert(t *testing.T) {
	agg := NewAggregate()
	r := aggRecord("Lait 2% Natrel", "123", "https://grocer.example/p/lait-2")

	agg.Add(r)
	if agg.Add(r) {
		t.Error("re-inserting the same record kept it, want dropped")
	}
	if agg.Len() != 1 {
		t.Errorf("got %d records, want 1", agg.Len())
	}
}

func TestAggregate_KeylessAppendedButNotIndexed(t *testing.T) {
	agg := NewAggregate()

	keyless := models.Record{Source: "grocer", Query: "lait"}
	if !agg.Add(keyless) {
		t.Fatal("keyless record rejected, want appended")
	}
	if !agg.Add(keyless) {
		t.Error("second keyless record rejected, want appended")
	}

	if agg.Len() != 2 {
		t.Errorf("got Len %d, want 2", agg.Len())
	}
	if agg.Keyed() != 0 {
		t.Errorf("got Keyed %d, want 0", agg.Keyed())
	}
}

func TestAggregate_KeyedCountsDistinctRecords(t *testing.T) {
	agg := NewAggregate()

	agg.Add(aggRecord("Lait 2% Natrel", "123", "https://grocer.example/p/lait-2"))
	agg.Add(aggRecord("Pain baguette", "777", "https://grocer.example/p/pain"))
	agg.Add(models.Record{Source: "grocer", Query: "lait"})

	if agg.Len() != 3 {
		t.Errorf("got Len %d, want 3", agg.Len())
	}
	if agg.Keyed() != 2 {
		t.Errorf("got Keyed %d, want 2", agg.Keyed())
	}
}
