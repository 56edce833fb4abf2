package cloak

// Tables backing the surrogate generator. Order is significant: indexes
// drawn from a seeded generator must select the same entry in every build.

var firstNames = []string{
	"Alice", "Bruno", "Carmen", "Dmitri", "Elena", "Farid", "Grace", "Hiro",
	"Ingrid", "Jonas", "Keiko", "Liam", "Maya", "Nikolai", "Olivia", "Pedro",
	"Quinn", "Rosa", "Samir", "Tara", "Umar", "Vera", "Walter", "Xena",
	"Yusuf", "Zoe", "Amara", "Felix", "Leona", "Marcus", "Nadia", "Oscar",
}

var lastNames = []string{
	"Anders", "Barros", "Castillo", "Dubois", "Eriksen", "Fischer", "Garcia", "Hartley",
	"Ibarra", "Jensen", "Kowalski", "Lindqvist", "Moreau", "Nakamura", "Okafor", "Petrov",
	"Quintero", "Rossi", "Schmidt", "Tanaka", "Underwood", "Valdez", "Whitaker", "Xu",
	"Yamada", "Zimmerman", "Abbott", "Brennan", "Calloway", "Delgado", "Ellison", "Foster",
}

// emailDomains are reserved for documentation and never route real mail.
var emailDomains = []string{
	"example.com", "example.org", "example.net", "mail.example.com", "corp.example.org",
}

var cities = []string{
	"Lisbon", "Osaka", "Tallinn", "Valparaiso", "Winnipeg", "Ghent", "Bergen", "Cusco",
	"Da Nang", "Erfurt", "Fremantle", "Graz", "Hobart", "Izmir", "Jaipur", "Kraków",
	"Leeds", "Mendoza", "Nantes", "Oaxaca", "Porto", "Quebec City", "Rotterdam", "Salzburg",
}

var organizationNames = []string{
	"Northwind", "Contoso", "Fabrikam", "Initech", "Globex", "Tailspin", "Wingtip", "Litware",
	"Adventure Works", "Proseware", "Lucerne", "Woodgrove", "Alpine Ski", "Coho", "Fourth Coffee", "Margie's",
}

var organizationSuffixes = []string{
	"Inc.", "LLC", "Group", "Partners", "Holdings", "Labs", "Systems", "Trading",
}

var urlHosts = []string{
	"www.example.com", "portal.example.org", "docs.example.net", "app.example.com", "files.example.org",
}

var urlPaths = []string{
	"", "about", "account", "profile", "docs/start", "help", "orders", "settings", "news/latest",
}

// ipv4DocumentationNets are the three TEST-NET ranges.
var ipv4DocumentationNets = []string{
	"192.0.2.", "198.51.100.", "203.0.113.",
}

// dateLayouts are tried in order when detecting the layout of an original date.
var dateLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"02.01.2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2006",
	"15:04:05",
	"15:04",
}

// defaultDateLayout is used when the original matches no known layout.
const defaultDateLayout = "2006-01-02"
