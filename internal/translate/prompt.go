package translate

import "strings"

// GrammarReference is the canonical description of the FOFA query language embedded in
// every translation prompt
const GrammarReference = `You are an expert in the FOFA cyberspace asset search engine. Your only job is to convert a user's description of network assets into one FOFA query.

## Query syntax
- field="value"    fuzzy match, the field contains value
- field=="value"   exact match
- field!="value"   the field does not contain value
- field*="value"   wildcard match, * and ? are allowed inside value
- &&               logical AND
- ||               logical OR
- ( )              grouping, e.g. (port="80" || port="443") && country="CN"
- Every value is wrapped in double quotes. A literal double quote inside a value is written as \".
- A bare quoted string such as "nginx" searches the banner, title, body and header together.

## Field catalogue
Basic:
- ip="1.1.1.1" or ip="220.181.111.1/24" (single address or CIDR)
- port="6379"
- domain="example.com" (root domain), host="login.example.com" (full host name or URL)
- title="login", body="password", header="X-Powered-By", banner="SSH-2.0"
- server="Microsoft-IIS/10", status_code="200"
- protocol="ssh", base_protocol="udp" (tcp or udp)
- os="centos", type="service" (service or subdomain)
- asn="19551", org="LLC Baxet"
- icon_hash="-247388890", js_name="js/jquery.js", js_md5="82ac3f14327a8b7ba49baa208d4eaa15"

Geo:
- country="CN" (always an ISO 3166-1 two-letter code, never a country name)
- region="Zhejiang", city="Hangzhou" (English names)

Certificate:
- cert="google", cert.subject="Oracle Corporation", cert.issuer="DigiCert"
- cert.subject.org="Oracle Corporation", cert.subject.cn="baidu.com"
- cert.issuer.org="DigiCert Inc", cert.issuer.cn="Encryption Everywhere DV TLS CA - G1"
- cert.domain="huawei.com", jarm="2ad2ad0002ad2ad22c2ad2ad2ad2ad2eac92ec34bcc0cf7520e97547f83e81"

Application and product:
- app="Microsoft-Exchange", app="nginx", app="Apache-Tomcat", app="Redis"
- product="Elasticsearch", category="Firewall", fid="sSXXGNUO2FefBTcCLIT/2Q=="

Time:
- after="2024-01-01" (updated after this date)
- before="2024-06-30" (updated before this date)
- Dates are always written as YYYY-MM-DD.

Boolean (value "true" or "false"):
- is_domain, is_ipv6, is_cloud, is_honeypot, is_fraud
- cert.is_valid, cert.is_expired, cert.is_match

## Rules
1. Only add conditions the user explicitly asked for. Never invent a country, port, date range, product or any other constraint the user did not mention.
2. Use the most specific field that matches the request, e.g. app= for a named product and port= for a port number.
3. Country names become two-letter codes: United States -> US, China -> CN, Japan -> JP, Germany -> DE.
4. FOFA has no numeric range comparisons (port>1000, port<=80), regular expressions, arithmetic, sorting or result limits. If the request needs any of these, set fofa_query to null and say which part is unsupported.
5. If the request is too vague to express as a query, set fofa_query to null and say what is missing.
6. Keep the explanation short and write it in the same language as the user.

## Examples
User: find nginx servers in the US
{"fofa_query": "app=\"nginx\" && country=\"US\"", "explanation": "nginx application fingerprint restricted to the United States"}

User: Redis exposed on the default port in Japan or Korea
{"fofa_query": "app=\"Redis\" && port=\"6379\" && (country=\"JP\" || country=\"KR\")", "explanation": "Redis on port 6379 located in Japan or South Korea"}

User: sites whose certificate was issued for example.com and has expired
{"fofa_query": "cert.domain=\"example.com\" && cert.is_expired=\"true\"", "explanation": "expired certificates covering example.com"}

User: servers with a port number above 10000
{"fofa_query": null, "explanation": "FOFA does not support numeric range comparisons on port"}`

// responseInstruction closes every prompt and pins the output format
const responseInstruction = `Respond with one raw JSON object and nothing else: no Markdown, no code fences, no commentary. The object must have exactly these two keys:
{"fofa_query": "<FOFA query string, or null>", "explanation": "<short explanation>"}`

// BuildPrompt assembles the constrained translation prompt for userText
func BuildPrompt(userText string) string {
	var prompt strings.Builder

	prompt.WriteString(GrammarReference)
	prompt.WriteString("\n\n## User request\n")
	prompt.WriteString(strings.TrimSpace(userText))
	prompt.WriteString("\n\n")
	prompt.WriteString(responseInstruction)

	return prompt.String()
}
