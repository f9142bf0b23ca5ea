// Package xconf 提供基于 koanf 的配置加载与文件热更新。
//
// 支持 YAML / JSON，按扩展名识别格式；结构体使用 `koanf` tag 映射，
// 时长字段可直接写成 "500ms"、"1m" 等字符串。
//
// 热更新通过 fsnotify 监听配置文件所在目录（兼容编辑器的原子替换与
// Kubernetes ConfigMap 的符号链接切换），变更经过防抖后调用 Reload 并回调。
package xconf
