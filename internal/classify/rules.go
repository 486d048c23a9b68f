package classify

// rule maps a theme to the sectors it may apply to and the description
// keywords that confirm it. Keywords are regular expressions matched against
// the lower-cased description.
type rule struct {
	theme    string
	sectors  []string
	keywords []string
}

// defaultRules is evaluated in order; output tags keep this order.
var defaultRules = []rule{
	{
		theme:    "AI",
		sectors:  []string{"Information Technology", "Communication Services", "Semiconductors", "Application Software", "Systems Software", "Technology Hardware, Storage & Peripherals"},
		keywords: []string{`artificial intelligence`, `\bai\b`, `machine learning`, `neural network`, `generative ai`, `deep learning`, `gpu`, `large language model`, `openai`, `copilot`},
	},
	{
		theme:    "Semiconductor",
		sectors:  []string{"Semiconductors", "Semiconductor Materials & Equipment", "Technology Hardware, Storage & Peripherals", "Electronic Components"},
		keywords: []string{`semiconductor`, `microchip`, `integrated circuit`, `wafer`, `chipset`, `nand`, `dram`, `flash memory`, `solid-state drive`, `hard disk`, `processor`, `graphics card`, `cpu`, `gpu`, `foundry`},
	},
	{
		theme:    "Memory & Storage",
		sectors:  []string{"Technology Hardware, Storage & Peripherals", "Semiconductors"},
		keywords: []string{`nand`, `dram`, `dynamic random access memory`, `solid-state drive`, `hard disk`, `flash memory`},
	},
	{
		theme:    "Cloud Computing",
		sectors:  []string{"Information Technology", "Communication Services", "Internet Services & Infrastructure", "Systems Software", "IT Consulting & Other Services", "Application Software"},
		keywords: []string{`cloud`, `data center`, `saas`, `paas`, `iaas`, `server virtualization`, `web services`, `hosting`},
	},
	{
		theme:    "Cybersecurity",
		sectors:  []string{"Systems Software", "Application Software", "IT Consulting & Other Services"},
		keywords: []string{`cybersecurity`, `network security`, `firewall`, `threat detection`, `identity management`, `endpoint protection`, `security software`, `data security`},
	},
	{
		theme:    "EV & Auto",
		sectors:  []string{"Automobile Manufacturers", "Auto Parts & Equipment", "Automotive Retail", "Industrial Machinery & Supplies & Components"},
		keywords: []string{`electric vehicle`, `\bev\b`, `lithium-ion`, `battery pack`, `charging station`, `autonomous driving`, `electric motor`, `hybrid vehicle`, `powertrain`},
	},
	{
		theme:    "Healthcare",
		sectors:  []string{"Health Care", "Biotechnology", "Pharmaceuticals", "Health Care Equipment & Supplies", "Life Sciences Tools & Services"},
		keywords: []string{`pharmaceutical`, `biotechnology`, `medical device`, `drug discovery`, `life sciences`, `vaccine`, `health`, `biopharm`},
	},
	{
		theme:    "Fintech",
		sectors:  []string{"Financials", "Information Technology", "Consumer Finance", "Transaction & Payment Processing Services", "Financial Exch. & Data", "Application Software"},
		keywords: []string{`digital payment`, `fintech`, `mobile banking`, `electronic trading`, `payment processing`, `credit card`, `debit card`, `transaction processing`, `financial data`, `exchange`},
	},
	{
		theme:    "Gaming",
		sectors:  []string{"Interactive Home Entertainment", "Leisure Products", "Semiconductors", "Interactive Media & Services", "Systems Software", "Application Software"},
		keywords: []string{`video game`, `gaming`, `interactive entertainment`, `graphics processor`, `e-sports`, `electronic arts`, `playstation`, `xbox`, `nintendo`, `publish`},
	},
	{
		theme:    "E-commerce",
		sectors:  []string{"Broadline Retail", "Consumer Discretionary", "Consumer Staples", "Footwear", "Apparel, Accessories & Luxury Goods"},
		keywords: []string{`e-commerce`, `online retail`, `digital marketplace`, `internet shopping`, `online store`, `online marketplace`, `retail`, `fulfillment`},
	},
	{
		theme:    "Energy",
		sectors:  []string{"Energy", "Utilities", "Oil, Gas & Consumable Fuels", "Electric Utilities", "Multi-Utilities"},
		keywords: []string{`oil`, `gas`, `petroleum`, `renewable energy`, `solar`, `wind power`, `fossil fuel`, `electricity`, `power generation`},
	},
	{
		theme:    "Defense",
		sectors:  []string{"Aerospace & Defense"},
		keywords: []string{`defense`, `military`, `weapon`, `national security`, `aerospace`, `aircraft`, `missile`, `satellite`},
	},
	{
		theme:    "Real Estate",
		sectors:  []string{"Real Estate", "Office REITs", "Residential REITs", "Retail REITs", "Specialized REITs", "Health Care REITs"},
		keywords: []string{`reit`, `property management`, `real estate`, `commercial real estate`, `residential real estate`, `apartment`},
	},
	{
		theme:    "Social Media",
		sectors:  []string{"Interactive Media & Services", "Communication Services", "Advertising"},
		keywords: []string{`social network`, `social media`, `messaging platform`, `online community`, `user-generated content`, `advertising`, `video sharing`, `engagement`, `facebook`, `instagram`, `whatsapp`, `snapchat`, `pinterest`, `search engine`},
	},
	{
		theme:    "Travel & Leisure",
		sectors:  []string{"Hotels, Resorts & Cruise Lines", "Passenger Airlines", "Broadline Retail", "Casinos & Gaming", "Hotels, Restaurants & Leisure"},
		keywords: []string{`airline`, `hotel`, `cruise`, `booking`, `tourism`, `hospitality`, `vacation`, `casino`, `restaurant`},
	},
	{
		theme:    "Robotics",
		sectors:  []string{"Industrial Machinery & Supplies & Components", "Electrical Components & Equipment", "Healthcare Equipment", "Semiconductor Materials & Equipment", "Industrial Machinery", "Industrials"},
		keywords: []string{`robotics`, `industrial automation`, `autonomous machine`, `drone`, `mechatronics`, `manufacturing solution`, `surgical robot`, `test equipment`, `control system`},
	},
	{
		theme:    "Blockchain",
		sectors:  []string{"Financials", "Information Technology"},
		keywords: []string{`blockchain`, `cryptocurrency`, `bitcoin`, `digital asset`, `distributed ledger`},
	},
	{
		theme:    "Streaming & Digital Media",
		sectors:  []string{"Movies & Entertainment", "Interactive Media & Services", "Communication Services", "Entertainment"},
		keywords: []string{`streaming`, `content library`, `digital entertainment`, `subscription`, `broadcasting`, `video on demand`, `entertainment`, `music`},
	},
	{
		theme:    "Infrastructure",
		sectors:  []string{"Construction & Engineering", "Electrical Components & Equipment", "Industrial Conglomerates", "Industrial Machinery & Supplies & Components", "Rail Transportation", "Heavy Electrical Equipment", "Industrials"},
		keywords: []string{`infrastructure`, `construction`, `engineering`, `power grid`, `railway`, `bridge`, `tunnel`, `building and maintenance`},
	},
	{
		theme:    "Building & Construction",
		sectors:  []string{"Building Products", "Homebuilding", "Construction Materials", "Industrials"},
		keywords: []string{`building products`, `construction materials`, `homebuilding`, `interior products`, `cladding`, `roofing`, `piping`},
	},
	{
		theme:    "Waste & Environmental",
		sectors:  []string{"Environmental & Facilities Services", "Industrials"},
		keywords: []string{`waste management`, `recycling`, `environmental service`, `trash`, `sustainability solution`},
	},
	{
		theme:    "Industrial Distribution",
		sectors:  []string{"Trading Companies & Distributors", "Industrials"},
		keywords: []string{`distribution`, `supply chain`, `logistics solution`, `wholesale`, `industrial supply`},
	},
}
