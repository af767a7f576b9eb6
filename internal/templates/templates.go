// Package templates ships built-in few-shot extraction prompts for common
// scraping scenarios.
package templates

import "sort"

var builtin = map[string]string{
	"products": `Extract product information from the page. Return JSON with these exact fields:
- name (string): Product name
- price (float): Price in USD without $ symbol
- in_stock (boolean): true if available, false if sold out
- rating (float): Rating from 0 to 5, or null if not shown

Examples:
Input HTML: <div><h2>Laptop Pro 15</h2><span class="price">$1,299.99</span><span class="stock">In Stock</span></div>
Output: {"name": "Laptop Pro 15", "price": 1299.99, "in_stock": true, "rating": null}

Now extract from the page.`,

	"articles": `Extract article information. Return JSON with:
- title (string): Article headline
- author (string or null): Author name
- publication_date (string or null): When published
- content (string): Article text content

Examples:
Input: <article><h1>AI Breakthrough in 2025</h1><span class="author">John Smith</span><time>2025-01-15</time><p>Researchers announced a major breakthrough...</p></article>
Output: {"title": "AI Breakthrough in 2025", "author": "John Smith", "publication_date": "2025-01-15", "content": "Researchers announced a major breakthrough..."}

Now extract from the page.`,

	"jobs": `Extract job posting details. Return JSON with:
- title (string): Job title
- company (string): Company name
- location (string or null): Job location
- salary (string or null): Salary range
- requirements (list of strings): Key requirements

Examples:
Input: <div class="job"><h2>Senior Python Developer</h2><span class="company">TechCorp</span><span class="location">San Francisco, CA</span><ul><li>5+ years Python</li></ul></div>
Output: {"title": "Senior Python Developer", "company": "TechCorp", "location": "San Francisco, CA", "salary": null, "requirements": ["5+ years Python"]}

Now extract from the page.`,

	"contacts": `Extract contact information. Return JSON with:
- name (string or null)
- email (string or null)
- phone (string or null)
- address (string or null)

Return null for any field not present on the page.`,
}

// Names lists the built-in template names, sorted.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the prompt for a template name.
func Get(name string) (string, bool) {
	prompt, ok := builtin[name]
	return prompt, ok
}
