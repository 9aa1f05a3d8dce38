package docuglean

import "sort"

type pageSet map[int]struct{}

func (s pageSet) add(pages []int) {
	for _, p := range pages {
		s[p] = struct{}{}
	}
}

func (s pageSet) sorted() []int {
	out := make([]int, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

type partitionAcc struct {
	pages pageSet
	low   bool
}

type splitAcc struct {
	pages      pageSet
	low        bool
	partitions map[string]*partitionAcc
}

// merger groups page assignments by category and then by partition. Page sets
// are unions and a low flag is sticky, so the result does not depend on the
// order in which assignments arrive.
type merger struct {
	rank   map[string]int
	splits map[string]*splitAcc
}

func newMerger(categories []Category) *merger {
	m := &merger{rank: make(map[string]int, len(categories)), splits: map[string]*splitAcc{}}
	for i, c := range categories {
		if _, dup := m.rank[c.Name]; !dup {
			m.rank[c.Name] = i
		}
	}
	return m
}

func (m *merger) add(category, partition string, pages []int, low bool) {
	if len(pages) == 0 {
		return
	}
	acc, ok := m.splits[category]
	if !ok {
		acc = &splitAcc{pages: pageSet{}, partitions: map[string]*partitionAcc{}}
		m.splits[category] = acc
	}
	acc.pages.add(pages)
	acc.low = acc.low || low

	if partition == "" {
		return
	}
	part, ok := acc.partitions[partition]
	if !ok {
		part = &partitionAcc{pages: pageSet{}}
		acc.partitions[partition] = part
	}
	part.pages.add(pages)
	part.low = part.low || low
}

func (m *merger) addSplit(s Split) {
	m.add(s.Name, "", s.Pages, s.Confidence == Low)
	for _, p := range s.Partitions {
		m.add(s.Name, p.Name, p.Pages, p.Confidence == Low)
	}
}

// result emits splits in category order; names outside the category list
// follow, sorted by name. Partitions are sorted by name.
func (m *merger) result() ClassifyResult {
	names := make([]string, 0, len(m.splits))
	for name := range m.splits {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, iok := m.rank[names[i]]
		rj, jok := m.rank[names[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return names[i] < names[j]
	})

	out := ClassifyResult{Splits: make([]Split, 0, len(names))}
	for _, name := range names {
		acc := m.splits[name]
		split := Split{Name: name, Pages: acc.pages.sorted(), Confidence: label(acc.low)}

		if len(acc.partitions) > 0 {
			partNames := make([]string, 0, len(acc.partitions))
			for pn := range acc.partitions {
				partNames = append(partNames, pn)
			}
			sort.Strings(partNames)
			for _, pn := range partNames {
				part := acc.partitions[pn]
				split.Partitions = append(split.Partitions, Partition{
					Name:       pn,
					Pages:      part.pages.sorted(),
					Confidence: label(part.low),
				})
			}
		}
		out.Splits = append(out.Splits, split)
	}
	return out
}

func label(low bool) Confidence {
	if low {
		return Low
	}
	return High
}

// ReduceChunk turns one chunk's page assignments into a ClassifyResult.
// A category is low if any of its pages in the chunk scored below
// LowConfidenceThreshold.
func ReduceChunk(categories []Category, classifications []PageClassification) ClassifyResult {
	m := newMerger(categories)
	for _, c := range classifications {
		m.add(c.Category, c.Partition, []int{c.Page}, ConfidenceOf(c.Confidence) == Low)
	}
	return m.result()
}

// MergeSplits combines chunk results into one document-wide result. Pages are
// unioned per category and partition, and confidence only degrades: one low
// contribution makes the category low. The merge is commutative and
// associative in results.
func MergeSplits(categories []Category, results ...ClassifyResult) ClassifyResult {
	m := newMerger(categories)
	for _, r := range results {
		for _, s := range r.Splits {
			m.addSplit(s)
		}
	}
	return m.result()
}
