package dnsname

import "strings"

// ToFQDN converts a zone-relative record name to a fully qualified domain name
//
// Rules:
// - zone = "example.com"
// - name = "@"    -> fqdn = "example.com"
// - name = "www"  -> fqdn = "www.example.com"
// - name = "a.b"  -> fqdn = "a.b.example.com"
//
// If name already contains the zone, it is returned as-is.
func ToFQDN(zone string, name string) string {
	zone = normalize(zone)
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")

	// Handle empty name (default to @)
	if name == "" || name == "@" {
		return zone
	}

	// If name already contains the zone, return as-is (already FQDN)
	if strings.HasSuffix(name, "."+zone) || name == zone {
		return name
	}

	return name + "." + zone
}

// Relative converts any name format to a zone-relative record name,
// using "@" for the zone apex
//
// Rules:
// - zone = "example.com"
// - name = "example.com"                      -> "@"
// - name = "_acme-challenge.example.com"      -> "_acme-challenge"
// - name = "_acme-challenge.www.example.com." -> "_acme-challenge.www" (trailing dot removed)
// - name = "@"                                -> "@"
// - name = "abc"                              -> "abc"
//
// The Active24 API expects record names relative to the owning zone,
// so every name sent to the API goes through this function.
func Relative(name string, zone string) string {
	zone = normalize(zone)
	name = normalize(name)

	// Handle empty name (default to @)
	if name == "" {
		return "@"
	}

	// If name equals zone, return @
	if name == zone {
		return "@"
	}

	// If name ends with ".zone", extract the relative part
	if strings.HasSuffix(name, "."+zone) {
		relName := strings.TrimSuffix(name, "."+zone)
		if relName == "" {
			return "@"
		}
		return relName
	}

	// Name is already relative
	return name
}

// IsSubdomain reports whether fqdn equals zone or lies under it.
// Used for selecting the longest-matching zone for a challenge name.
func IsSubdomain(fqdn string, zone string) bool {
	fqdn = normalize(fqdn)
	zone = normalize(zone)

	if zone == "" {
		return false
	}

	return fqdn == zone || strings.HasSuffix(fqdn, "."+zone)
}

func normalize(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, ".")
	return strings.ToLower(name)
}
