package scenario

import "github.com/Keepitcity/proof/models"

// Template is the authored skeleton of a scenario. DescriptionTemplate and
// OpeningTemplate may reference {name}, {company}, {city}, {property_type},
// {sqft} and {price}.
type Template struct {
	Category            models.ScenarioCategory `yaml:"category"`
	Title               string                  `yaml:"title"`
	Difficulty          models.Difficulty       `yaml:"difficulty"`
	DescriptionTemplate string                  `yaml:"description"`
	OpeningTemplate     string                  `yaml:"opening"`
	HiddenGoal          string                  `yaml:"hidden_goal"`
	PainPoints          []string                `yaml:"pain_points"`
	Objections          []string                `yaml:"objections"`
	DealBreakers        []string                `yaml:"deal_breakers"`
	SuccessCriteria     []string                `yaml:"success_criteria"`
	BudgetRange         *string                 `yaml:"budget_range"`
	MaxTurns            int                     `yaml:"max_turns"`
	TimeLimitSeconds    int                     `yaml:"time_limit_seconds"`
	Persona             *PersonaHint            `yaml:"persona"`
}

// PersonaHint pins persona values for a template. A hinted value is used when
// the matching pool is empty; Personality additionally competes with the pool
// on a coin flip.
type PersonaHint struct {
	Name          string `yaml:"name"`
	Company       string `yaml:"company"`
	Personality   string `yaml:"personality"`
	City          string `yaml:"city"`
	PropertyType  string `yaml:"property_type"`
	SquareFootage string `yaml:"square_footage"`
	ListingPrice  string `yaml:"listing_price"`
}

var pmTemplates = []Template{
	{
		Category:            models.CategoryQualityComplaint,
		Title:               "The Angry Reshoot Request",
		Difficulty:          models.DifficultyHard,
		DescriptionTemplate: "{name} from {company} is furious about photo quality from yesterday's shoot at a {sqft} sq ft {property_type} in {city}. They want a full reshoot for free, today.",
		HiddenGoal:          "Wants to feel heard more than anything. Would accept a partial reshoot if you acknowledge the issue and give a timeline.",
		PainPoints:          []string{"Photos are too dark", "Listing goes live tomorrow", "Paid premium price", "Seller is already upset"},
		Objections:          []string{"I paid for premium quality", "My clients expect better", "I'll go to your competitor", "This is unacceptable"},
		DealBreakers:        []string{"Being told it's not a big deal", "Long wait times for resolution", "Being put on hold"},
		SuccessCriteria: []string{
			"Acknowledge the issue without being defensive",
			"Ask specific questions about which photos need fixing",
			"Offer a concrete solution with a timeline",
			"Retain the client relationship",
		},
		OpeningTemplate: "Yeah, hi. This is {name} with {company}. I need to talk to someone about the photos from yesterday. They're terrible. The {property_type} in {city}? The photos are dark, the angles are wrong — I can't use these. My listing goes live tomorrow.",
	},
	{
		Category:            models.CategorySchedulingConflict,
		Title:               "Double-Booked Shoot Day",
		Difficulty:          models.DifficultyMedium,
		DescriptionTemplate: "{name} at {company} has a {sqft} sq ft {property_type} in {city} that needs to be shot tomorrow, but there's a scheduling conflict.",
		HiddenGoal:          "Flexible on time but needs to know you prioritize them. Would move to afternoon if asked respectfully.",
		PainPoints:          []string{"Already rescheduled once", "Open house in 3 days", "Seller is getting anxious"},
		Objections:          []string{"I was told this time was confirmed", "My seller is getting anxious", "This can't happen again"},
		DealBreakers:        []string{"Being made to feel unimportant", "No clear resolution"},
		SuccessCriteria: []string{
			"Be transparent about the conflict",
			"Offer alternative times proactively",
			"Make the client feel prioritized",
			"Secure a confirmed new time",
		},
		OpeningTemplate: "Hey there, it's {name} from {company}. I'm calling about tomorrow's shoot for the {property_type} in {city}. We're still good for the morning slot, right? Because I already told my seller we'd have photos by end of day.",
	},
	{
		Category:            models.CategoryScopeChange,
		Title:               "The Expanding Scope",
		Difficulty:          models.DifficultyMedium,
		DescriptionTemplate: "{name} from {company} booked a standard photo package for a {sqft} sq ft {property_type} listed at {price} in {city}, but keeps asking for extras — drone, video, twilight.",
		HiddenGoal:          "Would happily pay more if the value is explained clearly. Budget isn't the issue — clarity is.",
		PainPoints:          []string{"Luxury listing needs to look amazing", "Previous photographer did everything in one visit", "Seller expects high-end marketing"},
		Objections:          []string{"My last photographer included all of this", "At this price I expected more", "Why is that extra?"},
		DealBreakers:        []string{"Making them feel cheap for asking", "Hidden fees"},
		SuccessCriteria: []string{
			"Explain what's included vs. add-ons clearly",
			"Position extras as upgrades, not upsells",
			"Get commitment on expanded scope with pricing",
			"Keep the energy positive",
		},
		OpeningTemplate: "Hi! This is {name} from {company}. I just booked the photo shoot for my listing in {city} — the {sqft} square foot {property_type}, listed at {price}. Quick question — that includes drone shots too, right? And maybe a video walkthrough?",
	},
	{
		Category:            models.CategoryRushRequest,
		Title:               "The Last-Minute Rush",
		Difficulty:          models.DifficultyEasy,
		DescriptionTemplate: "{name} from {company} needs photos of a {sqft} sq ft {property_type} in {city} edited and delivered by tonight instead of the standard 24-hour turnaround.",
		HiddenGoal:          "Willing to pay a rush fee. Just needs to know it's possible.",
		PainPoints:          []string{"Listing appointment tomorrow morning", "Seller is impatient", "Already promised the seller"},
		Objections:          []string{"Is there any way to speed this up?", "I'll pay extra if needed"},
		SuccessCriteria: []string{
			"Assess feasibility honestly",
			"Quote rush fee clearly",
			"Set realistic delivery time",
			"Confirm the arrangement",
		},
		OpeningTemplate: "Hey, this is {name} over at {company}. So I know this is a big ask, but any chance I could get the photos from today's shoot — the {property_type} in {city} — delivered by tonight? I've got a listing presentation first thing tomorrow morning and I really need them.",
	},
	{
		Category:            models.CategoryUpsetClient,
		Title:               "The Missing Deliverables",
		Difficulty:          models.DifficultyHard,
		DescriptionTemplate: "{name} from {company} was promised a full media package for a {price} {property_type} in {city} and is missing the virtual tour and floor plan 48 hours later.",
		HiddenGoal:          "Needs the deliverables ASAP but also wants a discount or credit for the delay. Will stay if you offer both speed and accountability.",
		PainPoints:          []string{"Promised 24-hour delivery", "Seller is asking where the virtual tour is", "Paid for premium package"},
		Objections:          []string{"I was promised 24 hours", "This is the second time this happened", "I need a credit for this"},
		DealBreakers:        []string{"Blaming the client", "Making excuses without solutions"},
		SuccessCriteria: []string{
			"Apologize sincerely without excuses",
			"Provide a specific delivery timeline for remaining items",
			"Offer a meaningful make-good (credit, free add-on)",
			"Follow up proactively",
		},
		OpeningTemplate: "Hi, {name} here from {company}. I'm calling because I'm still missing the virtual tour and floor plan for the {property_type} in {city}. It's been 48 hours. I paid for the premium package and I was told I'd have everything in 24 hours. My seller is asking me where the virtual tour is and I don't have an answer.",
	},
}

var salesTemplates = []Template{
	{
		Category:            models.CategoryNewClientInquiry,
		Title:               "The Cold Lead",
		Difficulty:          models.DifficultyMedium,
		DescriptionTemplate: "{name} from {company} found your website and wants pricing for a {sqft} sq ft {property_type} in {city}. They're shopping around.",
		HiddenGoal:          "Wants the best value, not the cheapest. Will choose quality if you prove ROI and turnaround time.",
		PainPoints:          []string{"Previous photographer was unreliable", "Needs consistent quality", "Shopping 3 providers"},
		Objections:          []string{"Your competitor is cheaper", "I'm comparing options", "Can I try one shoot first?", "What's your turnaround time?"},
		DealBreakers:        []string{"Being pushy", "Not answering questions directly"},
		SuccessCriteria: []string{
			"Ask about their business before quoting price",
			"Understand their volume potential",
			"Position value over price",
			"Get commitment to a trial shoot",
		},
		OpeningTemplate: "Hi, my name is {name}, I'm an agent with {company}. I found you guys online and I'm looking for a new real estate photographer. I've got a {sqft} square foot {property_type} coming up in {city} and I wanted to get pricing. What do you guys charge?",
	},
	{
		Category:            models.CategoryBudgetObjection,
		Title:               "The Price Pushback",
		Difficulty:          models.DifficultyHard,
		DescriptionTemplate: "{name} at {company} does 8 listings a month and loves your quality, but says you're 30% more expensive than their current provider.",
		HiddenGoal:          "Already unhappy with current provider's reliability. Would switch for same price or slightly more if turnaround is faster and quality is consistent.",
		PainPoints:          []string{"Current provider misses deadlines", "Inconsistent quality", "No single point of contact"},
		Objections:          []string{"You're 30% more expensive", "I need to see the math", "What if quality isn't better?", "My current guy is fine, just not great"},
		DealBreakers:        []string{"Arrogance", "Inability to discuss pricing openly", "Talking down about competitors"},
		SuccessCriteria: []string{
			"Acknowledge the price difference honestly",
			"Uncover pain points with current provider",
			"Calculate the cost of missed deadlines and reshoots",
			"Offer a volume commitment with adjusted pricing",
			"Close with a specific next step",
		},
		OpeningTemplate: "Hey, it's {name} with {company}. So I got your pricing back and honestly, I love the portfolio. Your work is great. But you're like 30% more than what I'm paying now. I do about 8 listings a month so that adds up. Is there any flexibility there?",
	},
	{
		Category:            models.CategoryUpsellOpportunity,
		Title:               "The Upgrade Conversation",
		Difficulty:          models.DifficultyEasy,
		DescriptionTemplate: "{name} from {company} is an existing photo-only client who just landed a {price} luxury {property_type} in {city} and wants to know about video and drone.",
		HiddenGoal:          "Wants to impress the seller and win more luxury listings. Will buy the premium package if you connect it to their business growth.",
		PainPoints:          []string{"First luxury listing", "Wants to stand out", "Seller expects high-end marketing"},
		Objections:          []string{"How much more is video?", "Is drone worth it?", "Will it actually make a difference?"},
		SuccessCriteria: []string{
			"Congratulate them on the luxury listing",
			"Connect premium services to their business goals",
			"Present package options (not just one price)",
			"Close with a booking date",
		},
		OpeningTemplate: "Hey! It's {name} over at {company}. So guess what — I just landed a huge listing. {price} {property_type} in {city}, {sqft} square feet. I want to go all out on this one. You guys do video and drone too, right? What would that look like?",
	},
	{
		Category:            models.CategoryCompetitorComparison,
		Title:               "The Competitor Switch",
		Difficulty:          models.DifficultyHard,
		DescriptionTemplate: "{name} from {company} does 15+ listings a month and is considering leaving their current photographer after a series of problems.",
		HiddenGoal:          "Wants a reliable partner, not just a vendor. Will commit to a 3-month trial if you offer a dedicated point of contact and consistent quality.",
		PainPoints:          []string{"Current provider missed 3 shoots last month", "Different photographer every time", "Can't reach anyone when there's a problem"},
		Objections:          []string{"How do I know you won't do the same?", "I need a guarantee", "What happens when you get busy?", "I've heard this before"},
		DealBreakers:        []string{"Overpromising", "Not listening", "Trash-talking the competitor"},
		SuccessCriteria: []string{
			"Listen more than you talk in the first half",
			"Ask about specific pain points — don't assume",
			"Offer proof (case studies, references, trial)",
			"Propose a structured trial with clear expectations",
			"Never trash the competitor",
		},
		OpeningTemplate: "Yeah hi, this is {name} from {company}. Someone on my team recommended you guys. I'm doing about 15 to 20 listings a month and I'm... honestly just frustrated with my current setup. I'm not even sure what I'm looking for exactly, I just know I need a change.",
	},
	{
		Category:            models.CategoryFollowUpClose,
		Title:               "The Follow-Up That Went Cold",
		Difficulty:          models.DifficultyMedium,
		DescriptionTemplate: "{name} from {company} inquired 2 weeks ago about services for properties in {city} but never responded to your follow-up email. They're calling back now.",
		HiddenGoal:          "Got busy and forgot. Still interested but now also got a quote from a competitor. Needs a reason to choose you today.",
		PainPoints:          []string{"Too busy to respond", "Got a cheaper quote elsewhere", "Needs to make a decision this week"},
		Objections:          []string{"Sorry I ghosted you", "I got another quote that's lower", "I need to decide today actually"},
		DealBreakers:        []string{"Guilt-tripping about not responding", "Being inflexible"},
		SuccessCriteria: []string{
			"Welcome them back warmly — no guilt trip",
			"Re-qualify their needs (may have changed)",
			"Address the competing quote without desperation",
			"Create urgency and close today",
		},
		OpeningTemplate: "Hey, this is {name} from {company}. I think we talked a couple weeks ago? Sorry I dropped off — things got crazy. Anyway, I've got a few listings coming up in {city} and I need to lock in a photographer like... this week. Are you guys still available?",
	},
}
