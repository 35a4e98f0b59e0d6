package server

// ServiceOffering is one service line shown on the marketing pages
type ServiceOffering struct {
	Slug     string
	Name     string
	Summary  string
	Details  string
	Features []string
}

type PricingTier struct {
	Name     string
	Price    string
	Interval string
	Summary  string
	Features []string
	Featured bool
}

type PortfolioProject struct {
	Client   string
	Title    string
	Summary  string
	Services []string
}

var serviceCatalog = []ServiceOffering{
	{
		Slug:    "managed-it",
		Name:    "Managed IT",
		Summary: "Round-the-clock monitoring, patching and help desk for your whole team.",
		Details: "We take over day-to-day operations of your devices, servers and accounts so your staff can focus on their work.",
		Features: []string{
			"24/7 monitoring and alerting",
			"Patch and update management",
			"Remote and on-site help desk",
			"Quarterly technology reviews",
		},
	},
	{
		Slug:    "cloud",
		Name:    "Cloud Migration",
		Summary: "Move workloads to the cloud with a plan, not a leap of faith.",
		Details: "From assessment to cut-over we plan, migrate and tune your infrastructure on AWS, Azure or Google Cloud.",
		Features: []string{
			"Readiness assessment",
			"Migration runbooks",
			"Cost optimisation",
			"Infrastructure as code",
		},
	},
	{
		Slug:    "security",
		Name:    "Cyber Security",
		Summary: "Assess, harden and watch over the systems your business depends on.",
		Details: "Security reviews, endpoint protection and incident response sized for growing businesses.",
		Features: []string{
			"Vulnerability assessments",
			"Endpoint detection and response",
			"Security awareness training",
			"Incident response retainer",
		},
	},
	{
		Slug:    "web-development",
		Name:    "Web Development",
		Summary: "Fast, accessible websites and web applications built to last.",
		Details: "Design and engineering for marketing sites, customer portals and line-of-business applications.",
		Features: []string{
			"Responsive design",
			"Accessibility reviews",
			"API and integration work",
			"Hosting and maintenance",
		},
	},
}

var pricingTiers = []PricingTier{
	{
		Name:     "Starter",
		Price:    "$299",
		Interval: "month",
		Summary:  "For small teams that need a dependable help desk.",
		Features: []string{"Up to 10 users", "Business-hours support", "Monthly patching"},
	},
	{
		Name:     "Business",
		Price:    "$799",
		Interval: "month",
		Summary:  "Managed IT and security for growing companies.",
		Features: []string{"Up to 50 users", "24/7 monitoring", "Endpoint protection", "Quarterly reviews"},
		Featured: true,
	},
	{
		Name:     "Enterprise",
		Price:    "Custom",
		Summary:  "Dedicated engineers and tailored service levels.",
		Features: []string{"Unlimited users", "Dedicated account team", "Custom SLAs", "On-site support"},
	},
}

var portfolioProjects = []PortfolioProject{
	{
		Client:   "Harbour Logistics",
		Title:    "Warehouse network refresh",
		Summary:  "Replaced ageing switches and Wi-Fi across three warehouses with zero downtime during peak season.",
		Services: []string{"Managed IT"},
	},
	{
		Client:   "Brightside Clinics",
		Title:    "Cloud move for patient scheduling",
		Summary:  "Migrated the scheduling platform to the cloud and cut hosting costs by a third.",
		Services: []string{"Cloud Migration", "Cyber Security"},
	},
	{
		Client:   "Northwind Legal",
		Title:    "Client portal",
		Summary:  "Built a secure document portal with single sign-on for the firm's clients.",
		Services: []string{"Web Development", "Cyber Security"},
	},
}

func findService(slug string) (ServiceOffering, bool) {
	for _, svc := range serviceCatalog {
		if svc.Slug == slug {
			return svc, true
		}
	}
	return ServiceOffering{}, false
}
