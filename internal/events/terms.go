// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

package events

// Curated artist list driving the event term grid. Only the first
// topArtistCount entries are queried directly to keep the request
// volume predictable; the full list still feeds the relevance filter.
var diasporaArtists = []string{
	"Burna Boy", "Wizkid", "Davido", "Tiwa Savage", "Rema", "Tems", "Asake", "Omah Lay",
	"Ayra Starr", "Fireboy DML", "Adekunle Gold", "Oxlade",
	"Stonebwoy", "Shatta Wale", "Sarkodie", "Tyla", "Nasty C",
	"Black Coffee", "Master KG", "Diamond Platnumz", "Angelique Kidjo", "Fally Ipupa",
}

var diasporaKeywords = []string{
	"afrobeat", "afrobeats", "african music", "african festival", "amapiano",
}

const topArtistCount = 6

// searchTerms returns the fixed query grid: the top artists plus the
// genre keywords.
func searchTerms() []string {
	terms := make([]string, 0, topArtistCount+len(diasporaKeywords))
	terms = append(terms, diasporaArtists[:topArtistCount]...)
	terms = append(terms, diasporaKeywords...)
	return terms
}

// relevanceTerms returns the lowercase terms an event must mention
// somewhere in its text to count as diaspora-related.
func relevanceTerms() []string {
	terms := make([]string, 0, len(diasporaArtists)+8)
	for _, a := range diasporaArtists {
		terms = append(terms, lower(a))
	}
	terms = append(terms,
		"african", "afrobeat", "afrobeats", "amapiano", "highlife",
		"nigeria", "ghana", "south africa",
	)
	return terms
}
