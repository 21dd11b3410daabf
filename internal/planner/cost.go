package planner

import "github.com/dreamware/cyq/internal/catalog"

// Stats supplies the cardinality estimates the cost model
// is driven by: "num nodes per label, num rels per {direction,
// bound-label, rel-label}". internal/storage is the natural home for a
// real implementation (it holds the actual node-group/CSR row counts);
// planner only depends on this narrow interface so it can be built and
// tested before storage exists, and so a test can supply fixed numbers
// without standing up real tables.
type Stats interface {
	NodeCount(labelID int32) int64
	RelCount(relLabelID int32, dir catalog.Direction, boundLabelID int32) int64
}

// CatalogStats is a Stats implementation with no row-count source of its
// own: every table starts "unknown" and is assumed to hold
// defaultCardinality rows. Used when nothing more precise is wired in
// (e.g. planning immediately after DDL, before any COPY has run).
type CatalogStats struct {
	cat *catalog.Catalog
}

const defaultCardinality = 1000

func NewCatalogStats(cat *catalog.Catalog) *CatalogStats {
	return &CatalogStats{cat: cat}
}

func (s *CatalogStats) NodeCount(labelID int32) int64 {
	return defaultCardinality
}

func (s *CatalogStats) RelCount(relLabelID int32, dir catalog.Direction, boundLabelID int32) int64 {
	return defaultCardinality
}

// costScan is the cost of a SCAN_NODE_ID over a label, proportional to the
// label's cardinality.
func costScan(stats Stats, labelIDs []int32) float64 {
	if len(labelIDs) == 0 {
		return defaultCardinality
	}
	var total int64
	for _, l := range labelIDs {
		total += stats.NodeCount(l)
	}
	return float64(total)
}

// costExtend is proportional to the number of rels EXTEND traverses, per
// catalog cardinalities.
func costExtend(stats Stats, relLabelIDs []int32, dir catalog.Direction, boundLabelID int32, inputCard float64) float64 {
	var perRow int64
	if len(relLabelIDs) == 0 {
		perRow = defaultCardinality
	}
	for _, r := range relLabelIDs {
		perRow += stats.RelCount(r, dir, boundLabelID)
	}
	return inputCard * float64(perRow)
}

// costHashJoin is proportional to the build side's cardinality.
func costHashJoin(buildCard float64) float64 {
	return buildCard
}
