package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/tools/linters/enumvalidator"
)

func main() {
	singlechecker.Main(enumvalidator.Analyzer)
}
