package mcpserver

// QuickAddContract describes the quick-add line syntax that LLM consumers
// should follow when creating tasks.
const QuickAddContract = `# NovaTask Quick-Add Format

A task is created from a single line of text with optional inline tokens.

## Syntax

` + "```" + `
<task text> [!priority] [#category] [@due]
` + "```" + `

## Tokens

1. **Priority** ` + "`" + `!low` + "`" + `, ` + "`" + `!medium` + "`" + `, or ` + "`" + `!high` + "`" + `. Defaults to medium
   when absent.
2. **Category** ` + "`" + `#name` + "`" + `. Starts with a letter; letters, digits, ` + "`" + `_` + "`" + `,
   ` + "`" + `-` + "`" + ` and ` + "`" + `/` + "`" + ` are allowed. One category per task.
3. **Due date** ` + "`" + `@YYYY-MM-DD` + "`" + `, ` + "`" + `@today` + "`" + `, or ` + "`" + `@tomorrow` + "`" + `. Resolved to
   end of day local time.
4. Tokens may appear anywhere in the line; the first occurrence of each
   kind wins and all occurrences are removed from the task text.
5. Everything left after token removal is the task text. It must be
   non-empty and at most 500 characters.

## Examples

` + "```" + `
Buy milk !high #errands @tomorrow
Review pull request #work @2026-09-01
Water the plants
` + "```" + `
`
