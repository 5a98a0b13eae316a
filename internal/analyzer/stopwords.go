package analyzer

// defaultStopwords is the built-in stopword set covering common Chinese
// function words and English stopwords seen in regulation and contract text.
func defaultStopwords() map[string]struct{} {
	words := []string{
		// Chinese function words.
		"的", "了", "和", "与", "及", "或", "在", "是", "有", "其",
		"为", "对", "等", "并", "应", "按", "由", "之", "将", "被",
		"把", "该", "这", "那", "我们", "他们", "可以", "进行", "以及",
		"通过", "根据", "关于", "但是", "因为", "所以", "如果", "没有",
		// English stopwords.
		"a", "an", "the", "and", "or", "of", "to", "in", "on", "at",
		"for", "by", "with", "as", "is", "are", "was", "were", "be",
		"this", "that", "these", "those", "it", "its", "from", "not",
		"shall", "should", "must", "may", "can", "will",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
