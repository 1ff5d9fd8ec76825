package product

// Group is a set of listings from one aggregation run that are believed to
// describe the same product. Name and ImageURL come from the representative
// (first) listing.
type Group struct {
	Name     string
	ImageURL string
	Offers   []Offer
}

// Lowest returns the cheapest offer of the group. Ties resolve to the offer
// that was added first.
func (g Group) Lowest() (Offer, bool) {
	if len(g.Offers) == 0 {
		return Offer{}, false
	}
	lowest := g.Offers[0]
	for _, o := range g.Offers[1:] {
		if o.Price.LessThan(lowest.Price) {
			lowest = o
		}
	}
	return lowest, true
}

// GroupListings merges listings into groups using first-match similarity.
// Each listing joins the earliest-opened group whose representative name is
// Similar; otherwise it opens a new group. The result depends only on the
// order of listings.
func GroupListings(listings []Listing) []Group {
	if len(listings) == 0 {
		return nil
	}

	var (
		groups []Group
		reps   []string // representative name per group, same index
	)
	for _, l := range listings {
		idx := -1
		for i, rep := range reps {
			if Similar(rep, l.Name) {
				idx = i
				break
			}
		}
		if idx < 0 {
			groups = append(groups, Group{Name: l.Name, ImageURL: l.ImageURL})
			reps = append(reps, l.Name)
			idx = len(groups) - 1
		}
		groups[idx].Offers = append(groups[idx].Offers, l.Offer())
	}
	return groups
}
