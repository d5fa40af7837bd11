// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package supervisor

// Built-in blacklists inserted on first start. Operators extend or disable
// them per entry afterwards; seeding never resurrects a disabled row.
var (
	defaultAudioKeywords = []string{
		"加群", "交流群", "TG群", "Telegram", "QQ群", "Q群", "资源群",
		"微信号", "微信群", "微信公众号", "关注公众号",
	}

	defaultSubtitleKeywords = []string{
		"加群", "交流群", "微信号", "微信群", "QQ", "qq", "q群", "公众号",
		"网址", ".com", "http", "www", "link3.cc", "ysepan.com", "Tacit0924",
	}

	defaultMetaKeywords = []string{
		"http", "www", "weixin", "Telegram", "TG@", "TG频道@", "群：", "群:",
		"资源群", "加群", "微信号", "微信群", "QQ", "qq", "q群", "公众号",
		"微博", "b站", "资源站", "资源网", "发布页", "荣誉出品", "link3.cc",
		"ysepan.com", "GyWEB", "Qqun", "hehehe", ".com", "PTerWEB", "panclub",
		"BT之家", "CMCT", "Byakuya", "ed3000", "yunpantv", "KKYY", "盘酱酱",
		"TREX", "£yhq@tv", "1000fr", "HDCTV", "HHWEB", "ADWeb", "PanWEB",
		"BestWEB",
	}
)
