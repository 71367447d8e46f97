package domain

import "slices"

var languageTemplates = map[string]string{
	"javascript": "// Write your JavaScript code here",
	"python":     "# Write your Python code here",
	"java": `public class Main {
    public static void main(String[] args) {
        // Write your Java code here
    }
}`,
	"cpp": `#include <iostream>
using namespace std;

int main() {
    // Write your C++ code here
    return 0;
}`,
	"c": `#include <stdio.h>

int main() {
    // Write your C code here
    return 0;
}`,
	"csharp": `using System;

class Program {
    static void Main() {
        // Write your C# code here
    }
}`,
	"ruby": "# Write your Ruby code here",
	"rust": `fn main() {
    // Write your Rust code here
}`,
	"html": "<!-- Write your HTML here -->",
	"css":  "/* Write your CSS here */",
}

// Languages lists the editor language tags with a starter template, sorted.
func Languages() []string {
	out := make([]string, 0, len(languageTemplates))
	for k := range languageTemplates {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// StarterCode returns the template for language, or DefaultCode when unknown.
func StarterCode(language string) (string, bool) {
	if code, ok := languageTemplates[language]; ok {
		return code, true
	}
	return DefaultCode, false
}
